package domain

// LockInfo identifies the current holder of an advisory slot lock.
type LockInfo struct {
	BookingID string
	OwnerID   string
}

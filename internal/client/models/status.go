package models

// Status is the delivery state of a message. It only moves forward:
// sent, then delivered, then read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// After reports whether s is strictly later than other.
func (s Status) After(other Status) bool {
	return s.rank() > other.rank()
}

// internal/models/status.go
package models

// Reservation lifecycle states.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
	ReservationFailed    = "failed"
)

// Transaction states as mapped from gateway status codes. Sales mirror the
// status of their latest transaction and start out pending.
const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
	TransactionPending   = "pending"
	TransactionUnknown   = "unknown"
)

// HoldsSlot reports whether a reservation in the given state occupies its
// court interval.
func HoldsSlot(status string) bool {
	return status == ReservationPending || status == ReservationConfirmed
}

// ReservationStatusFor derives the reservation state that follows from a
// transaction outcome.
func ReservationStatusFor(transactionStatus string) string {
	switch transactionStatus {
	case TransactionCompleted:
		return ReservationConfirmed
	case TransactionFailed:
		return ReservationCancelled
	default:
		return ReservationPending
	}
}

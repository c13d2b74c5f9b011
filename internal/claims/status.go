package claims

// Status is the lifecycle state of a claim
type Status string

// Claim lifecycle states
const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusProcessingPayment Status = "processing_payment"
	StatusPaid              Status = "paid"
)

// transitions holds the admin-driven state table. rejected and paid are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:           {StatusApproved, StatusRejected},
	StatusApproved:          {StatusProcessingPayment, StatusPaid},
	StatusProcessingPayment: {StatusPaid},
}

// Valid reports whether s is a known claim status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusProcessingPayment, StatusPaid:
		return true
	}
	return false
}

// ValidTarget reports whether s is a status an admin may transition a claim
// to. pending is initial-only.
func (s Status) ValidTarget() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusProcessingPayment, StatusPaid:
		return true
	}
	return false
}

// CanTransition reports whether the from -> to transition appears in the
// state table
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PayoutEligible reports whether a payout amount is meaningful for the given
// status
func (s Status) PayoutEligible() bool {
	switch s {
	case StatusApproved, StatusProcessingPayment, StatusPaid:
		return true
	}
	return false
}

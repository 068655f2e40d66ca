package enum

// Order lifecycle statuses. The display strings double as the stored values;
// Completed and Cancelled are terminal.
const (
	StatusWaitingForApproval = "Waiting for Approval"
	StatusWaitingOnPayment   = "Approved, Waiting on Payment"
	StatusApprovedAndPaid    = "Approved and Paid"
	StatusCompleted          = "Completed"
	StatusCancelled          = "Cancelled"
)

// IsValidStatus reports whether s is one of the known order statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusWaitingForApproval, StatusWaitingOnPayment,
		StatusApprovedAndPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus reports whether s permits no further transitions.
func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Actors for cancellation requests.
const (
	ActorCustomer = "CUSTOMER"
	ActorAdmin    = "ADMIN"
)

// Pickup time bounds: orders are handed out between noon and 4 pm,
// 16:00 sharp being the last slot.
const (
	PickupHourMin = 12
	PickupHourMax = 16
)

package domain

// Eligibility decides whether an account with a given status may authenticate.
// Carriers may sign in while PENDING so they can follow their onboarding; everyone
// else needs ACTIVE.
func Eligibility(p Partition, s AccountStatus) (bool, string) {
	switch s {
	case AccountStatusActive:
		return true, ""
	case AccountStatusPending:
		if p == PartitionCompany {
			return true, ""
		}
		return false, "account is awaiting approval"
	case AccountStatusSuspended:
		return false, "account is suspended"
	case AccountStatusRejected:
		return false, "account application was rejected"
	default:
		return false, "account is not active"
	}
}

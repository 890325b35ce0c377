package domain

import "time"

// SubscriptionStatus enumerates billing states relevant to admission.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// User carries the account fields the orchestrator needs for its
// permission gate. Billing itself is handled elsewhere.
type User struct {
	ID           string
	Email        string
	Subscription SubscriptionStatus
	Credits      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanSubmit reports whether the user passes the admission gate for a job
// of the given credit cost.
func (u User) CanSubmit(costCredits int) bool {
	return u.Subscription == SubscriptionActive && u.Credits >= costCredits
}

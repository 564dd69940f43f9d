package model

import (
	"time"
)

// Bucket is a coarse urgency classification derived from days until expiry.
// It drives presentation only.
type Bucket string

const (
	BucketCritical Bucket = "critical"
	BucketWarning  Bucket = "warning"
	BucketNotice   Bucket = "notice"
)

// Bucket boundaries in days until expiry.
const (
	criticalMaxDays = 2
	warningMaxDays  = 7
)

// BucketFor classifies days-until-expiry into an urgency bucket.
// Negative values are already past due and classify as critical.
func BucketFor(days int) Bucket {
	switch {
	case days <= criticalMaxDays:
		return BucketCritical
	case days <= warningMaxDays:
		return BucketWarning
	default:
		return BucketNotice
	}
}

// Color returns the presentation color associated with the bucket.
func (b Bucket) Color() string {
	switch b {
	case BucketCritical:
		return "#c0392b"
	case BucketWarning:
		return "#e67e22"
	default:
		return "#2980b9"
	}
}

// ExpiryDecision is the derived, per-account outcome of policy resolution.
// A fresh value is constructed for every account inside its own iteration;
// decisions are never shared or reused across accounts.
type ExpiryDecision struct {
	AccountID       string        `json:"account_id"`
	DaysUntilExpiry int           `json:"days_until_expiry"`
	ExpiresAt       time.Time     `json:"expires_at"`
	MaxAge          time.Duration `json:"max_age"`
	PolicyName      string        `json:"policy_name"`
	Bucket          Bucket        `json:"bucket"`
	Included        bool          `json:"included"`
}

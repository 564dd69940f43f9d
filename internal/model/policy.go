package model

import (
	"time"
)

// PasswordPolicy is a maximum password age, either the domain-wide default or
// a fine-grained per-account override. A zero MaxAge means the policy is
// disabled (passwords never expire under it); it is never a valid expiration
// interval, which keeps "policy absent" distinct from "policy present but
// shortest".
type PasswordPolicy struct {
	Name   string        `json:"name" db:"name"`
	MaxAge time.Duration `json:"max_age" db:"max_age"`
}

// Expires reports whether the policy actually expires passwords.
func (p *PasswordPolicy) Expires() bool {
	return p != nil && p.MaxAge > 0
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ModeKind discriminates the mutually exclusive run modes.
type ModeKind string

const (
	// ModeDefault is a full scoped scan with real deliveries and an admin
	// summary email.
	ModeDefault ModeKind = "default"
	// ModeDemo lists candidates on the console without any email side effects.
	ModeDemo ModeKind = "demo"
	// ModePreview renders the notice for one named account, bypassing
	// eligibility checks.
	ModePreview ModeKind = "preview"
	// ModeTest scans a scoped subtree and redirects every notice to a single
	// override recipient.
	ModeTest ModeKind = "test"
)

// RunMode is the tagged run-mode variant, resolved once at CLI entry and
// passed immutably through the pipeline.
type RunMode struct {
	Kind ModeKind

	// AccountID names the preview target. Set only for ModePreview.
	AccountID string

	// Scope overrides the directory search root. Set only for ModeTest.
	Scope string

	// OverrideRecipient redirects all notices to one address. Set only for
	// ModeTest.
	OverrideRecipient string
}

// Preview reports whether eligibility checks are bypassed and the
// days-until-expiry sentinel applies.
func (m RunMode) Preview() bool { return m.Kind == ModePreview }

// SendsMail reports whether the run may produce outbound email.
func (m RunMode) SendsMail() bool { return m.Kind != ModeDemo }

// SendsSummary reports whether the run ends with an administrative summary
// email.
func (m RunMode) SendsSummary() bool {
	return m.Kind == ModeDefault || m.Kind == ModeTest
}

// SkippedAccount records an in-window account that could not be notified
// because no email address is on file.
type SkippedAccount struct {
	Name            string `json:"name"`
	ID              string `json:"id"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

// DeliveryFailure records a notice the mail transport rejected. Failures do
// not abort the run; they are counted and reported in the summary.
type DeliveryFailure struct {
	AccountID string `json:"account_id"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// RunResult accumulates the outcome of a single scan. It is owned by the
// scanner; dispatch outcomes are appended one account at a time.
type RunResult struct {
	RunID      uuid.UUID         `json:"run_id"`
	Mode       ModeKind          `json:"mode"`
	Delivered  int               `json:"delivered"`
	Skipped    []SkippedAccount  `json:"skipped"`
	Failed     []DeliveryFailure `json:"failed"`
	Elapsed    time.Duration     `json:"elapsed"`
	WindowDays int               `json:"window_days"`
	StartedAt  time.Time         `json:"started_at"`
}

// Processed is the total number of in-window accounts the run acted on:
// delivered, skipped for a missing address, or failed in transport.
func (r *RunResult) Processed() int {
	return r.Delivered + len(r.Skipped) + len(r.Failed)
}

// Package report builds the administrative run summary.
package report

import (
	"fmt"
	"time"

	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/email"
	"github.com/expirywatch/expirywatch/internal/model"
	"github.com/expirywatch/expirywatch/internal/notify"
)

// BuildSummary renders the one administrative summary message for a
// completed run.
func BuildSummary(renderer *notify.Renderer, result *model.RunResult, org config.OrganizationConfig, from, to string) (*email.Message, error) {
	body, err := renderer.Summary(notify.SummaryData{
		RunID:     result.RunID.String(),
		Mode:      string(result.Mode),
		Processed: result.Processed(),
		Delivered: result.Delivered,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Elapsed:   result.Elapsed.Round(time.Millisecond).String(),
		Window:    result.WindowDays,
		OrgName:   org.Name,
	})
	if err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("Password expiry scan: %d notified, %d skipped",
		result.Delivered, len(result.Skipped))
	if len(result.Failed) > 0 {
		subject = fmt.Sprintf("%s, %d failed", subject, len(result.Failed))
	}

	return &email.Message{
		To:      to,
		From:    from,
		Subject: subject,
		Body:    body,
	}, nil
}

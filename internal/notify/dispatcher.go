// Package notify classifies urgency, renders the notice, and routes it to
// the mail transport or the run's skipped list.
package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/email"
	"github.com/expirywatch/expirywatch/internal/model"
	"github.com/expirywatch/expirywatch/pkg/logger"
	"github.com/expirywatch/expirywatch/pkg/messaging"
	"github.com/expirywatch/expirywatch/pkg/metrics"
)

type Dispatcher struct {
	mailer   email.Service
	renderer *Renderer
	limiter  *rate.Limiter
	broker   messaging.Broker // optional event fan-out
	logger   *logger.Logger
	metrics  *metrics.Metrics

	from           string
	adminAddress   string
	previewDeliver bool
	org            config.OrganizationConfig
}

func NewDispatcher(mailer email.Service, renderer *Renderer, cfg config.MailConfig, org config.OrganizationConfig, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Dispatcher{
		mailer:         mailer,
		renderer:       renderer,
		limiter:        rate.NewLimiter(limit, burst),
		broker:         broker,
		logger:         log,
		metrics:        m,
		from:           cfg.From,
		adminAddress:   cfg.AdminAddress,
		previewDeliver: cfg.PreviewDeliver,
		org:            org,
	}
}

// Dispatch handles one included account. It classifies the urgency bucket,
// resolves the recipient, and either delivers the notice or records the
// account on the skipped list. Transport failures are counted and reported;
// they do not abort the run.
//
// Everything dispatched here is derived from the account and decision passed
// in; no state survives into the next call.
func (d *Dispatcher) Dispatch(ctx context.Context, acct model.Account, dec model.ExpiryDecision, mode model.RunMode, result *model.RunResult) error {
	dec.Bucket = model.BucketFor(dec.DaysUntilExpiry)
	dec.Included = true

	recipient, disclose := d.resolveRecipient(acct, mode)
	if recipient == "" {
		result.Skipped = append(result.Skipped, model.SkippedAccount{
			Name:            acct.DisplayName(),
			ID:              acct.ID,
			DaysUntilExpiry: dec.DaysUntilExpiry,
		})
		d.metrics.NoticesSkipped.Inc()
		d.logger.ZL.Info().
			Str("account", acct.ID).
			Int("days", dec.DaysUntilExpiry).
			Msg("no email address on file, added to skip list")
		return nil
	}

	body, err := d.renderer.Notice(NoticeData{
		Name:              acct.DisplayName(),
		Days:              dec.DaysUntilExpiry,
		Expired:           dec.DaysUntilExpiry < 0,
		ExpiresAt:         formatExpiry(dec.ExpiresAt),
		Color:             dec.Bucket.Color(),
		OrgName:           d.org.Name,
		HelpDesk:          d.org.HelpDesk,
		HelpDeskURL:       d.org.HelpDeskURL,
		OriginalRecipient: disclose,
	})
	if err != nil {
		return err
	}

	subject := noticeSubject(dec.DaysUntilExpiry)
	if disclose != "" {
		// Redirected notices must stay traceable to their intended recipient.
		subject = fmt.Sprintf("%s [for %s]", subject, disclose)
	}

	if mode.Kind == model.ModePreview && !d.previewDeliver {
		d.logger.ZL.Info().
			Str("account", acct.ID).
			Str("subject", subject).
			Msg("preview rendered, delivery disabled")
		d.logger.ZL.Debug().Str("body", body).Msg("preview body")
		result.Delivered++
		return nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := &email.Message{
		To:           recipient,
		From:         d.from,
		Subject:      subject,
		Body:         body,
		HighPriority: true,
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		result.Failed = append(result.Failed, model.DeliveryFailure{
			AccountID: acct.ID,
			Recipient: recipient,
			Reason:    err.Error(),
		})
		d.metrics.NoticesFailed.Inc()
		d.logger.Error(err, "notice delivery failed")
		return nil
	}

	result.Delivered++
	d.metrics.NoticesSent.Inc()
	d.metrics.NoticesByBucket.WithLabelValues(string(dec.Bucket)).Inc()
	d.logger.ZL.Info().
		Str("account", acct.ID).
		Str("recipient", recipient).
		Int("days", dec.DaysUntilExpiry).
		Str("bucket", string(dec.Bucket)).
		Msg("notice delivered")

	if d.broker != nil {
		if err := d.broker.Publish(ctx, messaging.ChannelNoticeSent, messaging.Message{
			Type:    "notice_sent",
			Payload: dec,
		}); err != nil {
			d.logger.Error(err, "failed to publish notice event")
		}
	}

	return nil
}

// resolveRecipient picks the delivery address for the account under the run
// mode. The second return is the original per-account recipient when the
// notice is being redirected, for subject and body disclosure.
func (d *Dispatcher) resolveRecipient(acct model.Account, mode model.RunMode) (string, string) {
	if mode.OverrideRecipient != "" {
		return mode.OverrideRecipient, originalRecipient(acct)
	}
	if mode.Kind == model.ModePreview {
		// Preview routes to the admin inbox, never the account's own.
		return d.adminAddress, originalRecipient(acct)
	}
	return acct.Email, ""
}

func originalRecipient(acct model.Account) string {
	if acct.Email != "" {
		return acct.Email
	}
	return acct.ID
}

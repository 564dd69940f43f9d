// Package scan runs the batch pipeline: directory records through policy
// resolution, eligibility filtering, notice dispatch, and the run summary.
package scan

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/expirywatch/expirywatch/internal/audit"
	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/directory"
	"github.com/expirywatch/expirywatch/internal/email"
	"github.com/expirywatch/expirywatch/internal/model"
	"github.com/expirywatch/expirywatch/internal/notify"
	"github.com/expirywatch/expirywatch/internal/policy"
	"github.com/expirywatch/expirywatch/internal/report"
	pkgerrors "github.com/expirywatch/expirywatch/pkg/errors"
	"github.com/expirywatch/expirywatch/pkg/logger"
	"github.com/expirywatch/expirywatch/pkg/messaging"
	"github.com/expirywatch/expirywatch/pkg/metrics"
)

// Deps are the collaborators a Scanner needs.
type Deps struct {
	Directory  directory.Service
	Policies   directory.PolicyService
	Dispatcher *notify.Dispatcher
	Renderer   *notify.Renderer
	Mailer     email.Service
	Sink       audit.Sink
	Broker     messaging.Broker // optional
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

type Scanner struct {
	deps        Deps
	cfg         *config.Config
	policyCache *cache.Cache

	// out receives the demo-mode candidate listing.
	out io.Writer
	now func() time.Time
}

func NewScanner(cfg *config.Config, deps Deps) *Scanner {
	return &Scanner{
		deps:        deps,
		cfg:         cfg,
		policyCache: cache.New(15*time.Minute, time.Hour),
		out:         os.Stdout,
		now:         time.Now,
	}
}

// Run executes one scan under the given mode. Accounts are processed
// sequentially in directory order; each iteration derives everything it
// needs from its own account record, so nothing computed for one account is
// visible while processing the next.
func (s *Scanner) Run(ctx context.Context, mode model.RunMode) (*model.RunResult, error) {
	start := s.now()
	result := &model.RunResult{
		RunID:      uuid.New(),
		Mode:       mode.Kind,
		WindowDays: s.cfg.WarningWindowDays,
		StartedAt:  start,
	}

	s.deps.Sink.Record(ctx, result.RunID, model.AuditCodeRunStarted,
		fmt.Sprintf("password expiry scan started (mode=%s, window=%d days)", mode.Kind, result.WindowDays))

	accounts, err := s.fetchAccounts(ctx, mode)
	if err != nil {
		return nil, s.abort(ctx, result, pkgerrors.NewDirectory("account query failed", err))
	}

	defaultPolicy, err := s.deps.Policies.DefaultPolicy(ctx)
	if err != nil {
		return nil, s.abort(ctx, result, pkgerrors.NewPolicy("domain policy query failed", err))
	}

	for _, acct := range accounts {
		s.deps.Metrics.AccountsScanned.Inc()

		if !eligible(acct, mode) {
			continue
		}

		override, err := s.accountPolicy(ctx, acct.ID)
		if err != nil {
			return nil, s.abort(ctx, result, pkgerrors.NewPolicy(
				fmt.Sprintf("fine-grained policy query for %s failed", acct.ID), err))
		}

		// A fresh decision is built here for every account; indeterminate
		// accounts produce no decision at all.
		decision, ok := policy.Resolve(acct, defaultPolicy, override, s.now(), mode.Preview())
		if !ok {
			continue
		}

		if !mode.Preview() && decision.DaysUntilExpiry > s.cfg.WarningWindowDays {
			continue
		}

		if mode.Kind == model.ModeDemo {
			s.printCandidate(acct, decision)
			result.Delivered++
			continue
		}

		if err := s.deps.Dispatcher.Dispatch(ctx, acct, decision, mode, result); err != nil {
			return nil, s.abort(ctx, result, pkgerrors.NewInternal(err))
		}
	}

	result.Elapsed = s.now().Sub(start)
	s.deps.Metrics.RunDuration.Observe(result.Elapsed.Seconds())

	s.deps.Sink.Record(ctx, result.RunID, model.AuditCodeRunCompleted,
		fmt.Sprintf("password expiry scan completed: %d processed, %d delivered, %d skipped, %d failed in %s",
			result.Processed(), result.Delivered, len(result.Skipped), len(result.Failed),
			result.Elapsed.Round(time.Millisecond)))

	if mode.SendsSummary() {
		if err := s.sendSummary(ctx, mode, result); err != nil {
			s.deps.Logger.Error(err, "failed to send run summary")
			return result, err
		}
	}

	if s.deps.Broker != nil {
		if err := s.deps.Broker.Publish(ctx, messaging.ChannelRunCompleted, messaging.Message{
			Type:    "run_completed",
			Payload: result,
		}); err != nil {
			s.deps.Logger.Error(err, "failed to publish run event")
		}
	}

	return result, nil
}

// eligible applies the batch-mode candidacy checks. Preview bypasses them so
// the rendered notice can be inspected for any account.
func eligible(acct model.Account, mode model.RunMode) bool {
	if mode.Preview() {
		return true
	}
	return acct.Enabled && !acct.PasswordExpired && !acct.PasswordNeverExpires
}

func (s *Scanner) fetchAccounts(ctx context.Context, mode model.RunMode) ([]model.Account, error) {
	if mode.Kind == model.ModePreview {
		acct, err := s.deps.Directory.Lookup(ctx, mode.AccountID)
		if err != nil {
			return nil, err
		}
		return []model.Account{*acct}, nil
	}

	scope := s.cfg.Directory.SearchRoot
	if mode.Scope != "" {
		scope = mode.Scope
	}
	return s.deps.Directory.Search(ctx, scope)
}

func (s *Scanner) accountPolicy(ctx context.Context, id string) (*model.PasswordPolicy, error) {
	if v, ok := s.policyCache.Get(id); ok {
		return v.(*model.PasswordPolicy), nil
	}

	p, err := s.deps.Policies.AccountPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	s.policyCache.Set(id, p, cache.DefaultExpiration)
	return p, nil
}

func (s *Scanner) printCandidate(acct model.Account, dec model.ExpiryDecision) {
	fmt.Fprintf(s.out, "%-20s %-30s %4d days  %s\n",
		acct.ID, acct.DisplayName(), dec.DaysUntilExpiry, model.BucketFor(dec.DaysUntilExpiry))
}

func (s *Scanner) sendSummary(ctx context.Context, mode model.RunMode, result *model.RunResult) error {
	// Test runs keep their mail away from the real admin inbox.
	to := s.cfg.Mail.AdminAddress
	if mode.OverrideRecipient != "" {
		to = mode.OverrideRecipient
	}

	msg, err := report.BuildSummary(s.deps.Renderer, result, s.cfg.Organization, s.cfg.Mail.From, to)
	if err != nil {
		return err
	}
	if err := s.deps.Mailer.Send(ctx, msg); err != nil {
		return pkgerrors.NewDelivery(to, err)
	}
	return nil
}

// abort records a final audit event before the fatal error propagates. No
// summary is sent for an aborted run.
func (s *Scanner) abort(ctx context.Context, result *model.RunResult, err error) error {
	if recordErr := s.deps.Sink.Record(ctx, result.RunID, model.AuditCodeRunAborted,
		fmt.Sprintf("password expiry scan aborted: %v", err)); recordErr != nil {
		s.deps.Logger.Error(recordErr, "failed to record abort event")
	}
	return err
}

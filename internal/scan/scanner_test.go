package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/email"
	"github.com/expirywatch/expirywatch/internal/model"
	"github.com/expirywatch/expirywatch/internal/notify"
	"github.com/expirywatch/expirywatch/pkg/logger"
	"github.com/expirywatch/expirywatch/pkg/metrics"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	accounts  []model.Account
	searchErr error
}

func (f *fakeDirectory) Search(ctx context.Context, scope string) ([]model.Account, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.accounts, nil
}

func (f *fakeDirectory) Lookup(ctx context.Context, id string) (*model.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			return &f.accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account %s not found", id)
}

type fakePolicies struct {
	def       *model.PasswordPolicy
	overrides map[string]*model.PasswordPolicy
	defErr    error
}

func (f *fakePolicies) DefaultPolicy(ctx context.Context) (*model.PasswordPolicy, error) {
	return f.def, f.defErr
}

func (f *fakePolicies) AccountPolicy(ctx context.Context, id string) (*model.PasswordPolicy, error) {
	return f.overrides[id], nil
}

type fakeMailer struct {
	sent    []email.Message
	failFor map[string]error
}

func (f *fakeMailer) Send(ctx context.Context, msg *email.Message) error {
	if err := f.failFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, *msg)
	return nil
}

type recordingSink struct {
	codes []int
}

func (r *recordingSink) Record(ctx context.Context, runID uuid.UUID, code int, message string) error {
	r.codes = append(r.codes, code)
	return nil
}

type fixture struct {
	scanner *Scanner
	mailer  *fakeMailer
	sink    *recordingSink
	demoOut *bytes.Buffer
}

func testConfig() *config.Config {
	return &config.Config{
		WarningWindowDays: 14,
		Organization: config.OrganizationConfig{
			Name:        "Acme Corp",
			HelpDesk:    "x4357",
			HelpDeskURL: "https://helpdesk.acme.example",
		},
		Mail: config.MailConfig{
			From:           "noreply@acme.example",
			AdminAddress:   "itops@acme.example",
			PreviewDeliver: true,
		},
		Directory: config.DirectoryConfig{SearchRoot: "OU=Staff,DC=acme,DC=example"},
	}
}

func newFixture(t *testing.T, cfg *config.Config, dir *fakeDirectory, pol *fakePolicies) *fixture {
	t.Helper()

	renderer, err := notify.NewRenderer()
	require.NoError(t, err)

	mailer := &fakeMailer{failFor: map[string]error{}}
	sink := &recordingSink{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	m := metrics.NewUnregistered("test")

	dispatcher := notify.NewDispatcher(mailer, renderer, cfg.Mail, cfg.Organization, nil, log, m)

	scanner := NewScanner(cfg, Deps{
		Directory:  dir,
		Policies:   pol,
		Dispatcher: dispatcher,
		Renderer:   renderer,
		Mailer:     mailer,
		Sink:       sink,
		Logger:     log,
		Metrics:    m,
	})
	demoOut := &bytes.Buffer{}
	scanner.out = demoOut
	scanner.now = func() time.Time { return testNow }

	return &fixture{scanner: scanner, mailer: mailer, sink: sink, demoOut: demoOut}
}

func account(id, mail string, lastSetDaysAgo int) model.Account {
	t := testNow.AddDate(0, 0, -lastSetDaysAgo)
	return model.Account{
		ID:              id,
		Name:            id,
		Email:           mail,
		Enabled:         true,
		PasswordLastSet: &t,
	}
}

func ninetyDays() *fakePolicies {
	return &fakePolicies{def: &model.PasswordPolicy{Name: "domain default", MaxAge: 90 * 24 * time.Hour}}
}

func TestRunExcludesIneligibleAccounts(t *testing.T) {
	disabled := account("disabled", "d@acme.example", 85)
	disabled.Enabled = false

	expired := account("expired", "e@acme.example", 85)
	expired.PasswordExpired = true

	neverExpires := account("never", "n@acme.example", 85)
	neverExpires.PasswordNeverExpires = true

	dir := &fakeDirectory{accounts: []model.Account{disabled, expired, neverExpires}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Delivered)
	assert.Empty(t, result.Skipped)
	// only the admin summary went out
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "itops@acme.example", f.mailer.sent[0].To)
}

func TestRunIndeterminateAccountsSilentlySkipped(t *testing.T) {
	noLastSet := model.Account{ID: "fresh", Email: "f@acme.example", Enabled: true}
	dir := &fakeDirectory{accounts: []model.Account{noLastSet}}

	t.Run("missing last-set", func(t *testing.T) {
		f := newFixture(t, testConfig(), dir, ninetyDays())
		result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
		require.NoError(t, err)
		assert.Zero(t, result.Processed())
		assert.Empty(t, result.Skipped, "indeterminate accounts never reach the skip list")
	})

	t.Run("zero max-age policy", func(t *testing.T) {
		dir := &fakeDirectory{accounts: []model.Account{account("jdoe", "j@acme.example", 85)}}
		pol := &fakePolicies{def: &model.PasswordPolicy{Name: "disabled", MaxAge: 0}}
		f := newFixture(t, testConfig(), dir, pol)

		result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
		require.NoError(t, err)
		assert.Zero(t, result.Processed())
	})
}

func TestRunWindowInclusion(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{
		account("inwindow", "in@acme.example", 77),    // 13 days left
		account("outside", "out@acme.example", 60),    // 30 days left
		account("pastdue", "past@acme.example", 95),   // -5 days
		account("boundary", "edge@acme.example", 76),  // exactly 14 days
	}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Delivered)
	var recipients []string
	for _, m := range f.mailer.sent {
		recipients = append(recipients, m.To)
	}
	assert.Contains(t, recipients, "in@acme.example")
	assert.Contains(t, recipients, "edge@acme.example")
	assert.Contains(t, recipients, "past@acme.example", "negative days are still included")
	assert.NotContains(t, recipients, "out@acme.example")
}

func TestRunFineGrainedOverride(t *testing.T) {
	pol := ninetyDays()
	pol.overrides = map[string]*model.PasswordPolicy{
		// 45-day override puts this account in the window
		"privileged": {Name: "admins-45d", MaxAge: 45 * 24 * time.Hour},
	}
	dir := &fakeDirectory{accounts: []model.Account{
		account("privileged", "p@acme.example", 40), // 5 days under override, 50 under default
		account("regular", "r@acme.example", 40),
	}}
	f := newFixture(t, testConfig(), dir, pol)

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	require.Len(t, f.mailer.sent, 2) // notice + summary
	assert.Equal(t, "p@acme.example", f.mailer.sent[0].To)
	assert.Contains(t, f.mailer.sent[0].Subject, "5 days")
}

// Processing account B after account A must never observe A's values: B is
// missing both the email address and the display name A had.
func TestRunPerAccountIsolation(t *testing.T) {
	a := account("alice", "alice@acme.example", 85)
	b := account("bob", "", 88)
	b.Name = ""
	b.GivenName = ""
	dir := &fakeDirectory{accounts: []model.Account{a, b}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	require.Len(t, result.Skipped, 1)
	skipped := result.Skipped[0]
	assert.Equal(t, "bob", skipped.ID)
	assert.Equal(t, "bob", skipped.Name, "bob's entry must fall back to his own identifier, not alice's name")
	assert.Equal(t, 2, skipped.DaysUntilExpiry)

	// exactly one notice, addressed to alice
	var notices []email.Message
	for _, m := range f.mailer.sent {
		if m.To != "itops@acme.example" {
			notices = append(notices, m)
		}
	}
	require.Len(t, notices, 1)
	assert.Equal(t, "alice@acme.example", notices[0].To)
}

func TestRunOverrideRecipient(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{
		account("alice", "alice@acme.example", 85),
		account("bob", "bob@acme.example", 88),
	}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	mode := model.RunMode{
		Kind:              model.ModeTest,
		OverrideRecipient: "dryrun@acme.example",
	}
	result, err := f.scanner.Run(context.Background(), mode)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Delivered)
	require.Len(t, f.mailer.sent, 3) // two notices + summary
	for _, m := range f.mailer.sent {
		assert.Equal(t, "dryrun@acme.example", m.To, "every message routes to the override recipient")
	}
	assert.Contains(t, f.mailer.sent[0].Subject, "alice@acme.example")
	assert.Contains(t, f.mailer.sent[1].Subject, "bob@acme.example")
}

func TestRunEndToEndScenarios(t *testing.T) {
	x := account("x", "x@acme.example", 77) // 13 days -> notice
	y := account("y", "y@acme.example", 89) // 1 day -> critical
	z := account("z", "z@acme.example", 89)
	z.PasswordNeverExpires = true

	dir := &fakeDirectory{accounts: []model.Account{x, y, z}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Delivered)

	byTo := map[string]email.Message{}
	for _, m := range f.mailer.sent {
		byTo[m.To] = m
	}
	require.Contains(t, byTo, "x@acme.example")
	assert.Contains(t, byTo["x@acme.example"].Subject, "13 days")
	assert.Contains(t, byTo["x@acme.example"].Body, model.BucketNotice.Color())
	assert.True(t, byTo["x@acme.example"].HighPriority)

	require.Contains(t, byTo, "y@acme.example")
	assert.Contains(t, byTo["y@acme.example"].Subject, "1 day")
	assert.Contains(t, byTo["y@acme.example"].Body, model.BucketCritical.Color())

	assert.NotContains(t, byTo, "z@acme.example")
}

func TestRunSummaryScenario(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{
		account("alice", "alice@acme.example", 85),
		account("bob", "bob@acme.example", 88),
		account("carol", "", 80),
	}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Delivered)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "carol", result.Skipped[0].ID)
	assert.Equal(t, 3, result.Processed())

	summary := f.mailer.sent[len(f.mailer.sent)-1]
	assert.Equal(t, "itops@acme.example", summary.To)
	assert.Contains(t, summary.Subject, "2 notified, 1 skipped")
	assert.Contains(t, summary.Body, "carol")
	assert.Contains(t, summary.Body, "<td>10</td>") // carol's days remaining in the table

	// one start and one completion audit event
	assert.Equal(t, []int{model.AuditCodeRunStarted, model.AuditCodeRunCompleted}, f.sink.codes)
}

func TestRunDeliveryFailureContinues(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{
		account("alice", "alice@acme.example", 85),
		account("bob", "bob@acme.example", 88),
	}}
	f := newFixture(t, testConfig(), dir, ninetyDays())
	f.mailer.failFor["alice@acme.example"] = errors.New("mailbox unavailable")

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "alice", result.Failed[0].AccountID)
	assert.Contains(t, result.Failed[0].Reason, "mailbox unavailable")

	summary := f.mailer.sent[len(f.mailer.sent)-1]
	assert.Contains(t, summary.Subject, "1 failed")
	assert.Contains(t, summary.Body, "mailbox unavailable")
}

func TestRunDirectoryFailureAborts(t *testing.T) {
	dir := &fakeDirectory{searchErr: errors.New("connection refused")}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	_, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.Error(t, err)

	assert.Empty(t, f.mailer.sent, "no summary after an aborted scan")
	assert.Equal(t, []int{model.AuditCodeRunStarted, model.AuditCodeRunAborted}, f.sink.codes)
}

func TestRunPolicyFailureAborts(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{account("alice", "a@acme.example", 85)}}
	pol := &fakePolicies{defErr: errors.New("policy service down")}
	f := newFixture(t, testConfig(), dir, pol)

	_, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDefault})
	require.Error(t, err)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, []int{model.AuditCodeRunStarted, model.AuditCodeRunAborted}, f.sink.codes)
}

func TestRunDemoModeNoMail(t *testing.T) {
	dir := &fakeDirectory{accounts: []model.Account{
		account("alice", "alice@acme.example", 85),
		account("carol", "", 80),
	}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	result, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModeDemo})
	require.NoError(t, err)

	assert.Empty(t, f.mailer.sent, "demo mode produces no email side effects")
	assert.Equal(t, 2, result.Delivered)
	out := f.demoOut.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "carol")
}

func TestRunPreviewMode(t *testing.T) {
	// Far from expiring and disabled: preview bypasses eligibility and
	// forces the one-day sentinel.
	target := account("alice", "alice@acme.example", 5)
	target.Enabled = false
	dir := &fakeDirectory{accounts: []model.Account{target}}
	f := newFixture(t, testConfig(), dir, ninetyDays())

	mode := model.RunMode{Kind: model.ModePreview, AccountID: "alice"}
	_, err := f.scanner.Run(context.Background(), mode)
	require.NoError(t, err)

	require.Len(t, f.mailer.sent, 1, "preview delivers the notice only, no summary")
	msg := f.mailer.sent[0]
	assert.Equal(t, "itops@acme.example", msg.To, "preview routes to the admin inbox")
	assert.Contains(t, msg.Subject, "1 day")
	assert.Contains(t, msg.Subject, "alice@acme.example")
}

func TestRunPreviewWithoutDelivery(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.PreviewDeliver = false
	dir := &fakeDirectory{accounts: []model.Account{account("alice", "alice@acme.example", 5)}}
	f := newFixture(t, cfg, dir, ninetyDays())

	_, err := f.scanner.Run(context.Background(), model.RunMode{Kind: model.ModePreview, AccountID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent)
}

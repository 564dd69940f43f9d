package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/expirywatch/expirywatch/internal/audit"
	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/directory"
	ldapdir "github.com/expirywatch/expirywatch/internal/directory/ldap"
	"github.com/expirywatch/expirywatch/internal/email"
	"github.com/expirywatch/expirywatch/internal/notify"
	"github.com/expirywatch/expirywatch/internal/repository/postgres"
	"github.com/expirywatch/expirywatch/internal/scan"
	"github.com/expirywatch/expirywatch/pkg/logger"
	"github.com/expirywatch/expirywatch/pkg/messaging"
	"github.com/expirywatch/expirywatch/pkg/messaging/redis"
	"github.com/expirywatch/expirywatch/pkg/metrics"
)

// app holds everything a run needs, plus the handles to close afterwards.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	scanner *scan.Scanner
	db      *sqlx.DB

	closers []func() error
}

// database opens the configured database once and reuses the handle.
func (a *app) database() (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.NewDB(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) Close() {
	for _, close := range a.closers {
		if err := close(); err != nil {
			a.logger.Error(err, "cleanup failed")
		}
	}
}

// buildCore loads configuration and the logger, nothing else. Maintenance
// commands that never touch the directory or mail use it directly.
func buildCore() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:   level,
		Console: cfg.Logging.Console,
	})

	return &app{cfg: cfg, logger: log}, nil
}

// buildApp wires the full scan pipeline.
func buildApp() (*app, error) {
	a, err := buildCore()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	log := a.logger

	dir, policies, err := a.buildDirectory()
	if err != nil {
		return nil, err
	}

	broker, err := a.buildBroker()
	if err != nil {
		return nil, err
	}

	sink, err := a.buildAuditSink(broker)
	if err != nil {
		return nil, err
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}

	mailer := email.NewSMTPService(cfg.Mail)
	m := metrics.New("expirywatch")
	dispatcher := notify.NewDispatcher(mailer, renderer, cfg.Mail, cfg.Organization, broker, log, m)

	a.scanner = scan.NewScanner(cfg, scan.Deps{
		Directory:  dir,
		Policies:   policies,
		Dispatcher: dispatcher,
		Renderer:   renderer,
		Mailer:     mailer,
		Sink:       sink,
		Broker:     broker,
		Logger:     log,
		Metrics:    m,
	})

	return a, nil
}

func (a *app) buildDirectory() (directory.Service, directory.PolicyService, error) {
	switch a.cfg.Directory.Backend {
	case "ldap":
		d, err := ldapdir.Connect(a.cfg.Directory.LDAP, a.cfg.Directory.SearchRoot)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, d.Close)
		return d, d, nil

	case "postgres":
		db, err := a.database()
		if err != nil {
			return nil, nil, err
		}
		base := postgres.NewBaseRepository(db)
		return postgres.NewDirectoryRepository(base), postgres.NewPolicyRepository(base), nil

	default:
		return nil, nil, fmt.Errorf("unknown directory backend %q", a.cfg.Directory.Backend)
	}
}

func (a *app) buildAuditSink(broker messaging.Broker) (audit.Sink, error) {
	sinks := []audit.Sink{audit.NewLogSink(a.logger)}

	if a.cfg.Audit.Store {
		db, err := a.database()
		if err != nil {
			return nil, fmt.Errorf("audit store unavailable: %w", err)
		}
		sinks = append(sinks, audit.NewStoreSink(postgres.NewAuditRepository(postgres.NewBaseRepository(db))))
	}

	if broker != nil {
		sinks = append(sinks, audit.NewBrokerSink(broker, messaging.ChannelAudit))
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return audit.NewMultiSink(sinks...), nil
}

func (a *app) buildBroker() (messaging.Broker, error) {
	if !a.cfg.Events.Enabled {
		return nil, nil
	}

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          a.cfg.Events.RedisURL,
		MaxRetries:   a.cfg.Events.MaxRetries,
		RetryBackoff: a.cfg.Events.RetryBackoff,
	}, &a.logger.ZL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, broker.Close)
	return broker, nil
}

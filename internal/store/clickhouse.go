package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/ethpandaops/hilbench/internal/harness"
	"github.com/ethpandaops/hilbench/internal/store/migrations"
	"github.com/golang-migrate/migrate/v4"
	migrateclickhouse "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

const (
	pingTimeout     = 5 * time.Second
	migrationsTable = "schema_migrations"
)

var errNotStarted = errors.New("sink not started")

// ClickhouseConfig describes where outcomes are stored.
type ClickhouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// ClickhouseConfigFromApp extracts the ClickHouse settings from the application config.
func ClickhouseConfigFromApp(cfg *config.AppConfig) ClickhouseConfig {
	return ClickhouseConfig{
		Host:     cfg.ClickhouseHost,
		Port:     cfg.ClickhousePort,
		Database: cfg.ClickhouseDatabase,
		Username: cfg.ClickhouseUsername,
		Password: cfg.ClickhousePassword,
	}
}

// Options returns the driver options for database (empty means the configured one).
func (c ClickhouseConfig) Options(database string) *clickhouse.Options {
	if database == "" {
		database = c.Database
	}

	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", c.Host, c.Port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: c.Username,
			Password: c.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Duration(10) * time.Minute,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
}

// ClickhouseSink writes one row per outcome. Traces are left to the time series sink.
type ClickhouseSink struct {
	log logrus.FieldLogger
	cfg ClickhouseConfig
	db  *sql.DB
}

// NewClickhouseSink creates a sink; Start connects and migrates.
func NewClickhouseSink(log logrus.FieldLogger, cfg ClickhouseConfig) *ClickhouseSink {
	return &ClickhouseSink{
		log: log.WithField("component", "store.clickhouse"),
		cfg: cfg,
	}
}

// Start creates the database if needed, applies migrations and opens the connection.
func (s *ClickhouseSink) Start(ctx context.Context) error {
	if err := s.createDatabase(ctx); err != nil {
		return err
	}

	db := clickhouse.OpenDB(s.cfg.Options(""))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := Migrate(s.log, db, s.cfg.Database); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db

	s.log.WithFields(logrus.Fields{
		"addr":     s.cfg.Options("").Addr[0],
		"database": s.cfg.Database,
	}).Info("clickhouse sink started")

	return nil
}

func (s *ClickhouseSink) createDatabase(ctx context.Context) error {
	db := clickhouse.OpenDB(s.cfg.Options("default"))
	defer func() {
		if err := db.Close(); err != nil {
			s.log.WithError(err).Debug("error closing bootstrap connection")
		}
	}()

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", s.cfg.Database)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	return nil
}

// Stop closes the connection.
func (s *ClickhouseSink) Stop() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return fmt.Errorf("failed to close clickhouse connection: %w", err)
	}

	s.log.Info("clickhouse sink stopped")

	return nil
}

// RecordOutcome inserts o into the outcomes table.
func (s *ClickhouseSink) RecordOutcome(ctx context.Context, o harness.Outcome) error {
	if s.db == nil {
		return errNotStarted
	}

	if _, err := s.db.ExecContext(ctx, insertOutcomeQuery(), outcomeRow(o)...); err != nil {
		return fmt.Errorf("failed to insert outcome %q: %w", o.Scenario, err)
	}

	return nil
}

// RecordTrace is a no-op; the trace path is stored with the outcome.
func (s *ClickhouseSink) RecordTrace(_ context.Context, _ harness.Outcome, _ *harness.Trace) error {
	return nil
}

var outcomeColumns = []string{
	"run_id",
	"scenario",
	"kind",
	"passed",
	"details",
	"pickup_ms",
	"trip_ms",
	"reaction_ms",
	"trace_path",
	"started_at",
	"duration_ms",
}

func insertOutcomeQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(outcomeColumns)), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		config.OutcomesTable,
		strings.Join(outcomeColumns, ", "),
		placeholders,
	)
}

// outcomeRow returns the values of o in outcomeColumns order.
func outcomeRow(o harness.Outcome) []any {
	return []any{
		o.RunID,
		o.Scenario,
		string(o.Kind),
		o.Passed,
		o.Details,
		nullable(o.PickupMS),
		nullable(o.TripMS),
		nullable(o.ReactionMS),
		o.TracePath,
		o.StartedAt.UTC(),
		harness.Millis(o.Duration),
	}
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Migrate applies the embedded schema to database over db.
func Migrate(log logrus.FieldLogger, db *sql.DB, database string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := migrateclickhouse.WithInstance(db, &migrateclickhouse.Config{
		DatabaseName:          database,
		MigrationsTable:       migrationsTable,
		MigrationsTableEngine: "MergeTree",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "clickhouse", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", upErr)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		log.Debug("no new migrations to apply")
		return nil
	}

	version, dirty, vErr := m.Version()
	if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", vErr)
	}

	log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("migrations applied")

	return nil
}

// Compile-time interface compliance check
var _ Sink = (*ClickhouseSink)(nil)

package services

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"winledger/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine owns every ledger operation. Handlers hold one shared *Engine.
type Engine struct {
	db     *gorm.DB
	policy config.Policy
	log    *zap.Logger

	now      func() time.Time
	cooldown Cooldown
	cpm      CPMTable

	defaultCountry    string
	settlementTimeout time.Duration
	holder            string
	settleMu          sync.Mutex

	jwtSecret   []byte
	jwtTTL      time.Duration
	adminEmails map[string]struct{}
}

type Option func(*Engine)

// WithClock replaces time.Now. The returned time is normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = func() time.Time { return now().UTC() }
	}
}

func WithCooldown(c Cooldown) Option {
	return func(e *Engine) {
		e.cooldown = c
	}
}

func WithCPMTable(t CPMTable) Option {
	return func(e *Engine) {
		e.cpm = t
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func New(db *gorm.DB, cfg *config.Config, opts ...Option) *Engine {
	host, _ := os.Hostname()

	e := &Engine{
		db:                db,
		policy:            cfg.Policy,
		log:               zap.L().Named("engine"),
		now:               func() time.Time { return time.Now().UTC() },
		cooldown:          LedgerCooldown{},
		cpm:               DefaultCPMTable(),
		defaultCountry:    cfg.DefaultCountry,
		settlementTimeout: cfg.Scheduler.SettlementTimeout,
		holder:            host + ":" + strconv.Itoa(os.Getpid()) + ":" + uuid.NewString()[:8],
		jwtSecret:         []byte(cfg.JWTSecret),
		jwtTTL:            cfg.JWTTTL,
		adminEmails:       make(map[string]struct{}, len(cfg.AdminEmails)),
	}
	for _, email := range cfg.AdminEmails {
		e.adminEmails[email] = struct{}{}
	}
	if e.defaultCountry == "" {
		e.defaultCountry = "US"
	}
	if e.settlementTimeout <= 0 {
		e.settlementTimeout = 5 * time.Minute
	}
	if e.jwtTTL <= 0 {
		e.jwtTTL = 24 * time.Hour
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Now() time.Time {
	return e.now()
}

// Ping reports whether the store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

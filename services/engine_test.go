package services

import (
	"testing"
	"time"

	"winledger/config"
	"winledger/errutil"
	"winledger/helpers"
	"winledger/models"
	"winledger/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() *config.Config {
	cfg := &config.Config{
		Policy:         config.DefaultPolicy(),
		DefaultCountry: "US",
		JWTSecret:      "test-secret",
		JWTTTL:         time.Hour,
		AdminEmails:    []string{"admin@example.com"},
	}
	cfg.Scheduler.SettlementTimeout = time.Minute
	return cfg
}

type fixture struct {
	db     *gorm.DB
	clock  *testClock
	engine *Engine
	cfg    *config.Config
}

func newFixture(t *testing.T, mutate func(cfg *config.Config), opts ...Option) *fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	db := testutil.NewTestDB(t)
	clock := &testClock{now: epoch}
	opts = append([]Option{WithClock(clock.Now), WithCPMTable(FlatCPMTable(1000))}, opts...)

	return &fixture{
		db:     db,
		clock:  clock,
		engine: New(db, cfg, opts...),
		cfg:    cfg,
	}
}

// user inserts an account and its balance row directly, skipping bcrypt.
func (f *fixture) user(t *testing.T, email string, referredBy *uint) models.User {
	t.Helper()

	u := models.User{
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleUser,
		ReferralCode: helpers.GenerateReferralCode(),
		ReferredBy:   referredBy,
		IsActive:     true,
	}
	u.CreatedAt = f.clock.Now()
	require.NoError(t, f.db.Create(&u).Error)
	require.NoError(t, ensureBalance(f.db, u.ID, f.clock.Now()))
	return u
}

func (f *fixture) admin(t *testing.T) models.User {
	t.Helper()
	u := f.user(t, "root@example.com", nil)
	require.NoError(t, f.db.Model(&u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

func (f *fixture) setBalance(t *testing.T, userID uint, fields map[string]any) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.UserBalance{}).Where("user_id = ?", userID).Updates(fields).Error)
}

func (f *fixture) balance(t *testing.T, userID uint) models.UserBalance {
	t.Helper()
	bal, err := loadBalance(f.db, userID)
	require.NoError(t, err)
	return bal
}

func requireErrCode(t *testing.T, err error, code errutil.Code) errutil.BaseError {
	t.Helper()
	require.Error(t, err)
	be, ok := errutil.As(err)
	require.True(t, ok, "unexpected error: %v", err)
	require.Equal(t, code, be.Code, be.Message)
	return be
}

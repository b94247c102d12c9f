package config

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// MGM principal disposition on early cancel. With hold the principal stays
// locked until an admin refunds or forfeits it.
const (
	PrincipalHold    = "hold"
	PrincipalRefund  = "refund"
	PrincipalForfeit = "forfeit"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	Host   string
	Port   string
	AppEnv string

	Database struct {
		Host        string
		Port        string
		User        string
		Password    string
		Name        string
		SSLMode     string
		AutoMigrate bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	JWTSecret   string
	JWTTTL      time.Duration
	AdminEmails []string

	DefaultCountry string

	Scheduler struct {
		SettlementCron    string
		SettlementTimeout time.Duration
		Timezone          string
	}

	Policy Policy
}

// Policy holds the money and lock parameters of the reward engine.
type Policy struct {
	TokenRateUSD         float64
	WinPerUSD            float64
	UserShare            float64
	SettlementUsersShare float64
	VestingLockDays      int
	KYCMinDailyUSD       float64
	KYCMinReferrals      int
	ReferralShare        float64
	MGMCancelPrincipal   string

	MinWithdrawUSD        float64
	DailyWithdrawLimitUSD float64
}

func DefaultPolicy() Policy {
	return Policy{
		TokenRateUSD:         0.001,
		WinPerUSD:            60,
		UserShare:            0.60,
		SettlementUsersShare: 0.70,
		VestingLockDays:      15,
		KYCMinDailyUSD:       0.40,
		KYCMinReferrals:      10,
		ReferralShare:        0.10,
		MGMCancelPrincipal:   PrincipalHold,

		MinWithdrawUSD:        5,
		DailyWithdrawLimitUSD: 100,
	}
}

// LoadDotEnv copies .env into the process environment. A missing file is
// not fatal; callers log the returned error once the logger exists.
func LoadDotEnv() error {
	return godotenv.Load()
}

// AppEnv is read before Load so the logger can be built first.
func AppEnv() string {
	return getString("APP_ENV", "development")
}

// Load reads the process environment. Invalid values fall back to defaults
// with a warning on the global logger. An empty JWT_SECRET is an error in
// production.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Host = getString("HOST", "127.0.0.1")
	cfg.Port = getString("PORT", "3000")
	cfg.AppEnv = AppEnv()

	cfg.Database.Host = getString("DB_HOST", "127.0.0.1")
	cfg.Database.Port = getString("DB_PORT", "5432")
	cfg.Database.User = getString("DB_USER", "postgres")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = getString("DB_NAME", "winledger")
	cfg.Database.SSLMode = getString("DB_SSLMODE", "disable")
	cfg.Database.AutoMigrate = getBool("DB_AUTO_MIGRATE", false)

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getInt("REDIS_DB", 0)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTTTL = getDuration("JWT_TTL", 30*24*time.Hour)
	cfg.AdminEmails = getList("ADMIN_EMAILS")
	cfg.DefaultCountry = strings.ToUpper(getString("DEFAULT_COUNTRY", "US"))

	cfg.Scheduler.SettlementCron = getString("SETTLEMENT_CRON", "0 0 * * *")
	cfg.Scheduler.SettlementTimeout = getDuration("SETTLEMENT_TIMEOUT", 5*time.Minute)
	cfg.Scheduler.Timezone = getString("SCHEDULER_TZ", "UTC")

	def := DefaultPolicy()
	cfg.Policy = Policy{
		TokenRateUSD:         getPositiveFloat("TOKEN_RATE_USD", def.TokenRateUSD),
		WinPerUSD:            getPositiveFloat("WIN_PER_USD", def.WinPerUSD),
		UserShare:            getFraction("USER_SHARE", def.UserShare),
		SettlementUsersShare: getFraction("SETTLEMENT_USERS_SHARE", def.SettlementUsersShare),
		VestingLockDays:      getInt("VESTING_LOCK_DAYS", def.VestingLockDays),
		KYCMinDailyUSD:       getPositiveFloat("KYC_MIN_DAILY_USD", def.KYCMinDailyUSD),
		KYCMinReferrals:      getInt("KYC_MIN_REFERRALS", def.KYCMinReferrals),
		ReferralShare:        getFraction("REFERRAL_SHARE", def.ReferralShare),
		MGMCancelPrincipal:   def.MGMCancelPrincipal,

		MinWithdrawUSD:        getNonNegativeFloat("MIN_WITHDRAW_USD", def.MinWithdrawUSD),
		DailyWithdrawLimitUSD: getPositiveFloat("DAILY_WITHDRAW_LIMIT_USD", def.DailyWithdrawLimitUSD),
	}

	switch p := strings.ToLower(getString("MGM_CANCEL_PRINCIPAL", def.MGMCancelPrincipal)); p {
	case PrincipalHold, PrincipalRefund, PrincipalForfeit:
		cfg.Policy.MGMCancelPrincipal = p
	default:
		zap.L().Warn("invalid MGM_CANCEL_PRINCIPAL, holding principal for admin review", zap.String("value", p))
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		zap.L().Warn("JWT_SECRET is empty, tokens are signed with an insecure development secret")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		zap.L().Warn("invalid boolean in environment", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		zap.L().Warn("invalid integer in environment", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func getPositiveFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		zap.L().Warn("invalid number in environment", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func getNonNegativeFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(v >= 0) || math.IsInf(v, 0) {
		zap.L().Warn("invalid number in environment", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func getFraction(key string, def float64) float64 {
	v := getPositiveFloat(key, def)
	if v > 1 {
		zap.L().Warn("fraction out of range in environment", zap.String("key", key), zap.Float64("value", v))
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		zap.L().Warn("invalid duration in environment", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Claims struct {
	Role string `json:"role"`
	SID  string `json:"sid"`
	jwt.RegisteredClaims
}

type AuthUser struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
}

type AuthResult struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresAt   int64    `json:"expires_at"`
	User        AuthUser `json:"user"`
}

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=16"`
	Country      string `json:"country" validate:"omitempty,len=2"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

const referralCodeAttempts = 5

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account, its balance row and an access token.
func (e *Engine) Register(ctx context.Context, in RegisterInput, userAgent string) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := helpers.ValidateStruct(in); err != nil {
		return nil, err
	}

	email := in.Email
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errutil.Internal("hash password", err)
	}

	role := models.RoleUser
	if _, ok := e.adminEmails[email]; ok {
		role = models.RoleAdmin
	}

	now := e.now()
	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Country:      strings.ToUpper(in.Country),
		IsActive:     true,
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errutil.Conflict("email already registered")
		}

		if code := helpers.NormalizeReferralCode(in.ReferralCode); code != "" {
			var referrer models.User
			if err := tx.Select("id").Where("referral_code = ?", code).Take(&referrer).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errutil.Validation("unknown referral code")
				}
				return err
			}
			user.ReferredBy = &referrer.ID
		}

		created := false
		for i := 0; i < referralCodeAttempts && !created; i++ {
			user.ReferralCode = helpers.GenerateReferralCode()
			var clash int64
			if err := tx.Model(&models.User{}).Where("referral_code = ?", user.ReferralCode).Count(&clash).Error; err != nil {
				return err
			}
			if clash == 0 {
				created = true
			}
		}
		if !created {
			return errutil.Internal("could not allocate referral code", nil)
		}

		if err := tx.Omit("Balance", "Events", "Sessions").Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errutil.Conflict("email already registered")
			}
			return err
		}
		return ensureBalance(tx, user.ID, now)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role), zap.Bool("referred", user.ReferredBy != nil))
	return e.issueToken(ctx, user, userAgent)
}

func (e *Engine) Login(ctx context.Context, in LoginInput, userAgent string) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := helpers.ValidateStruct(in); err != nil {
		return nil, err
	}

	var user models.User
	err := e.db.WithContext(ctx).Where("email = ?", in.Email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, errutil.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, errutil.Forbidden("Account disabled")
	}

	return e.issueToken(ctx, user, userAgent)
}

func (e *Engine) issueToken(ctx context.Context, user models.User, userAgent string) (*AuthResult, error) {
	now := e.now()
	expires := now.Add(e.jwtTTL)

	session := models.Session{UserID: user.ID, UserAgent: truncate(userAgent, 255), ExpiresAt: expires}
	if err := e.db.WithContext(ctx).Omit("User").Create(&session).Error; err != nil {
		return nil, err
	}

	claims := Claims{
		Role: user.Role,
		SID:  session.SID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "winledger",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.jwtSecret)
	if err != nil {
		return nil, errutil.Internal("sign token", err)
	}

	return &AuthResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expires.Unix(),
		User: AuthUser{
			ID:           user.ID,
			Email:        user.Email,
			Role:         user.Role,
			ReferralCode: user.ReferralCode,
		},
	}, nil
}

func (e *Engine) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.jwtSecret, nil
	}, jwt.WithTimeFunc(e.now), jwt.WithIssuer("winledger"), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Authenticate resolves a bearer token to its user. The token must carry a
// live session and the account must still be active.
func (e *Engine) Authenticate(ctx context.Context, raw string) (models.User, *Claims, error) {
	claims, err := e.parseToken(raw)
	if err != nil {
		return models.User{}, nil, errutil.Unauthorized("Invalid or expired token")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return models.User{}, nil, errutil.Unauthorized("Invalid or expired token")
	}

	db := e.db.WithContext(ctx)
	var session models.Session
	if err := db.Where("sid = ? AND user_id = ? AND expires_at > ?", claims.SID, id, e.now()).
		Take(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, nil, errutil.Unauthorized("Session expired")
		}
		return models.User{}, nil, err
	}

	var user models.User
	if err := db.Take(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, nil, errutil.Unauthorized("Invalid or expired token")
		}
		return models.User{}, nil, err
	}
	if !user.IsActive {
		return models.User{}, nil, errutil.Forbidden("Account disabled")
	}
	return user, claims, nil
}

func (e *Engine) Logout(ctx context.Context, sid string) error {
	return e.db.WithContext(ctx).Where("sid = ?", sid).Delete(&models.Session{}).Error
}

// PurgeExpiredSessions hard-deletes sessions that expired before cutoff.
func (e *Engine) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := e.db.WithContext(ctx).Unscoped().Where("expires_at < ?", cutoff).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"winledger/errutil"
	"winledger/models"

	"gorm.io/gorm"
)

type AdminUserView struct {
	ID               uint       `json:"_id"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	ReferralCode     string     `json:"referral_code"`
	IsActive         bool       `json:"is_active"`
	TokenBalance     float64    `json:"token_balance"`
	TotalEarningsUSD float64    `json:"total_earnings_usd"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLogin        *time.Time `json:"last_login"`
}

// AdminUsers lists accounts newest first, optionally filtered by an email
// substring.
func (e *Engine) AdminUsers(ctx context.Context, search string, limit int) ([]AdminUserView, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := e.db.WithContext(ctx)

	var rows []struct {
		ID               uint
		Email            string
		Role             string
		ReferralCode     string
		IsActive         bool
		CreatedAt        time.Time
		LockedWin        float64
		AvailableWin     float64
		TotalEarningsUSD float64
	}
	q := db.Model(&models.User{}).
		Select("users.id, users.email, users.role, users.referral_code, users.is_active, users.created_at, " +
			"COALESCE(user_balances.locked_win, 0) AS locked_win, " +
			"COALESCE(user_balances.available_win, 0) AS available_win, " +
			"COALESCE(user_balances.total_earnings_usd, 0) AS total_earnings_usd").
		Joins("LEFT JOIN user_balances ON user_balances.user_id = users.id")
	if s := strings.ToLower(strings.TrimSpace(search)); s != "" {
		q = q.Where("users.email LIKE ?", "%"+s+"%")
	}
	if err := q.Order("users.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]AdminUserView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	logins, err := lastLogins(db, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		v := AdminUserView{
			ID:               r.ID,
			Email:            r.Email,
			Role:             r.Role,
			ReferralCode:     r.ReferralCode,
			IsActive:         r.IsActive,
			TokenBalance:     roundWin(r.LockedWin + r.AvailableWin),
			TotalEarningsUSD: roundUSD(r.TotalEarningsUSD),
			CreatedAt:        r.CreatedAt,
		}
		if t, ok := logins[r.ID]; ok {
			v.LastLogin = &t
		}
		out = append(out, v)
	}
	return out, nil
}

// lastLogins reads session creation times, revoked sessions included.
func lastLogins(db *gorm.DB, ids []uint) (map[uint]time.Time, error) {
	var sessions []models.Session
	err := db.Unscoped().
		Select("user_id", "created_at").
		Where("user_id IN ?", ids).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]time.Time, len(ids))
	for _, s := range sessions {
		if s.CreatedAt.After(out[s.UserID]) {
			out[s.UserID] = s.CreatedAt
		}
	}
	return out, nil
}

type AdminStats struct {
	TotalUsers         int64   `json:"total_users"`
	ActiveToday        int64   `json:"active_today"`
	TotalRevenue       float64 `json:"total_revenue"`
	TotalTokens        float64 `json:"total_tokens"`
	PendingRevenueUSD  float64 `json:"pending_revenue_usd"`
	PendingSettlements int64   `json:"pending_settlements"`
	PendingPayouts     int64   `json:"pending_payouts"`
	HeldMGMPrincipals  int64   `json:"held_mgm_principals"`
}

func (e *Engine) AdminStats(ctx context.Context) (*AdminStats, error) {
	db := e.db.WithContext(ctx)
	var out AdminStats

	if err := db.Model(&models.User{}).Count(&out.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.RevenueEvent{}).
		Where("kind = ? AND created_at >= ?", models.EventKindGame, startOfDay(e.now())).
		Distinct("user_id").
		Count(&out.ActiveToday).Error; err != nil {
		return nil, err
	}

	var revenue float64
	if err := db.Model(&models.RevenueEvent{}).
		Where("kind = ?", models.EventKindGame).
		Select("COALESCE(SUM(revenue_usd), 0)").
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	var totals struct {
		Tokens  float64
		Pending float64
	}
	if err := db.Model(&models.UserBalance{}).
		Select("COALESCE(SUM(locked_win + available_win), 0) AS tokens, COALESCE(SUM(pending_revenue_usd), 0) AS pending").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	out.TotalRevenue = roundUSD(revenue)
	out.TotalTokens = roundWin(totals.Tokens)
	out.PendingRevenueUSD = roundUSD(totals.Pending)

	if err := db.Model(&models.Settlement{}).
		Where("status IN ?", []string{models.SettlementPendingApproval, models.SettlementApproved}).
		Count(&out.PendingSettlements).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.PayoutRequest{}).
		Where("status = ?", models.PayoutPending).
		Count(&out.PendingPayouts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.MGMSubscription{}).
		Where("status = ? AND principal_held = ?", models.MGMCancelled, true).
		Count(&out.HeldMGMPrincipals).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

const (
	AuditGamePlay     = "game_play"
	AuditReferral     = "referral"
	AuditAdjustment   = "adjustment"
	AuditMissionClaim = "mission_claim"
)

type AuditEvent struct {
	ID         string    `json:"_id"`
	EventType  string    `json:"event_type"`
	UserID     uint      `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	GameType   string    `json:"game_type,omitempty"`
	RevenueUSD float64   `json:"revenue_usd"`
	Reward     float64   `json:"reward"`
	MissionID  string    `json:"mission_id,omitempty"`
	Country    string    `json:"country,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var auditKinds = map[string]string{
	AuditGamePlay:        models.EventKindGame,
	models.EventKindGame: models.EventKindGame,
	AuditReferral:        models.EventKindReferral,
	AuditAdjustment:      models.EventKindAdjustment,
}

// AdminEvents merges ledger events and mission claims into one audit trail,
// newest first. eventType narrows it to a single kind.
func (e *Engine) AdminEvents(ctx context.Context, eventType string, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	eventType = strings.ToLower(strings.TrimSpace(eventType))
	kind, isLedger := auditKinds[eventType]
	if eventType != "" && !isLedger && eventType != AuditMissionClaim {
		return nil, errutil.Validation("invalid event_type %q", eventType)
	}
	db := e.db.WithContext(ctx)
	out := []AuditEvent{}

	if eventType == "" || isLedger {
		q := db.Order("created_at DESC").Limit(limit)
		if isLedger {
			q = q.Where("kind = ?", kind)
		}
		var events []models.RevenueEvent
		if err := q.Find(&events).Error; err != nil {
			return nil, err
		}
		for _, ev := range events {
			out = append(out, AuditEvent{
				ID:         ev.ID,
				EventType:  auditType(ev.Kind),
				UserID:     ev.UserID,
				GameType:   ev.GameType,
				RevenueUSD: roundUSD(ev.RevenueUSD),
				Reward:     roundWin(ev.WinTokens),
				Country:    ev.Country,
				Timestamp:  ev.CreatedAt,
			})
		}
	}

	if eventType == "" || eventType == AuditMissionClaim {
		var claims []models.MissionClaim
		if err := db.Order("created_at DESC").Limit(limit).Find(&claims).Error; err != nil {
			return nil, err
		}
		for _, c := range claims {
			out = append(out, AuditEvent{
				ID:        "mission-" + strconv.FormatUint(uint64(c.ID), 10),
				EventType: AuditMissionClaim,
				UserID:    c.UserID,
				Reward:    roundWin(c.RewardWin),
				MissionID: c.MissionID,
				Timestamp: c.CreatedAt,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	if err := e.attachEmails(db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func auditType(kind string) string {
	if kind == models.EventKindGame {
		return AuditGamePlay
	}
	return kind
}

func (e *Engine) attachEmails(db *gorm.DB, events []AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	seen := make(map[uint]bool)
	ids := []uint{}
	for _, ev := range events {
		if !seen[ev.UserID] {
			seen[ev.UserID] = true
			ids = append(ids, ev.UserID)
		}
	}

	var users []models.User
	if err := db.Unscoped().Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	emails := make(map[uint]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}
	for i := range events {
		events[i].UserEmail = emails[events[i].UserID]
	}
	return nil
}

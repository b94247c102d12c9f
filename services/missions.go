package services

import (
	"context"
	"errors"
	"fmt"

	"winledger/errutil"
	"winledger/models"

	"gorm.io/gorm"
)

type missionDef struct {
	ID          string
	Title       string
	Description string
	Reward      float64
	Target      int64
	Icon        string
	Color       string
	// counts today's game events that advance the mission
	where string
	args  []any
}

var missionDefs = []missionDef{
	{ID: "play_5", Title: "Play 5 games", Description: "Finish any 5 games today", Reward: 5, Target: 5, Icon: "game-controller", Color: "#4CAF50"},
	{ID: "watch_10_ads", Title: "Watch 10 ads", Description: "Watch 10 rewarded ads today", Reward: 15, Target: 10, Icon: "play-circle", Color: "#FF9800",
		where: "ad_watched = ?", args: []any{true}},
	{ID: "spin_3", Title: "Spin 3 times", Description: "Spin the wheel 3 times today", Reward: 5, Target: 3, Icon: "sync-circle", Color: "#9C27B0",
		where: "game_type = ?", args: []any{GameSpin}},
	{ID: "quiz_3", Title: "Answer 3 quizzes", Description: "Complete 3 quizzes today", Reward: 5, Target: 3, Icon: "help-circle", Color: "#2196F3",
		where: "game_type = ?", args: []any{GameQuiz}},
}

func findMission(id string) (missionDef, bool) {
	for _, m := range missionDefs {
		if m.ID == id {
			return m, true
		}
	}
	return missionDef{}, false
}

type Mission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Reward      float64 `json:"reward"`
	Progress    int64   `json:"progress"`
	Target      int64   `json:"target"`
	Completed   bool    `json:"completed"`
	Claimed     bool    `json:"claimed"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
}

func (e *Engine) missionProgress(tx *gorm.DB, userID uint, m missionDef) (int64, error) {
	from := startOfDay(e.now())
	q := tx.Model(&models.RevenueEvent{}).
		Where("user_id = ? AND kind = ? AND created_at >= ? AND created_at < ?",
			userID, models.EventKindGame, from, from.AddDate(0, 0, 1))
	if m.where != "" {
		q = q.Where(m.where, m.args...)
	}

	var n int64
	err := q.Count(&n).Error
	return n, err
}

// Missions lists today's missions with live progress.
func (e *Engine) Missions(ctx context.Context, userID uint) ([]Mission, error) {
	db := e.db.WithContext(ctx)
	period := dayKey(e.now())

	var claimed []string
	if err := db.Model(&models.MissionClaim{}).
		Where("user_id = ? AND period = ?", userID, period).
		Pluck("mission_id", &claimed).Error; err != nil {
		return nil, err
	}
	claimedSet := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		claimedSet[id] = true
	}

	out := make([]Mission, 0, len(missionDefs))
	for _, m := range missionDefs {
		progress, err := e.missionProgress(db, userID, m)
		if err != nil {
			return nil, err
		}
		out = append(out, Mission{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Reward:      m.Reward,
			Progress:    min(progress, m.Target),
			Target:      m.Target,
			Completed:   progress >= m.Target,
			Claimed:     claimedSet[m.ID],
			Icon:        m.Icon,
			Color:       m.Color,
		})
	}
	return out, nil
}

type MissionClaimResult struct {
	Success bool    `json:"success"`
	Reward  float64 `json:"reward"`
	Message string  `json:"message"`
}

// ClaimMission credits a completed mission once per day.
func (e *Engine) ClaimMission(ctx context.Context, user models.User, missionID string) (*MissionClaimResult, error) {
	m, ok := findMission(missionID)
	if !ok {
		return nil, errutil.NotFound("mission not found")
	}

	now := e.now()
	period := dayKey(now)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBalance(tx, user.ID, now); err != nil {
			return err
		}
		if _, err := lockBalance(tx, user.ID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.MissionClaim{}).
			Where("user_id = ? AND mission_id = ? AND period = ?", user.ID, m.ID, period).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errutil.AlreadyClaimed()
		}

		progress, err := e.missionProgress(tx, user.ID, m)
		if err != nil {
			return err
		}
		if progress < m.Target {
			return errutil.Conflict("mission not completed yet (%d/%d)", progress, m.Target)
		}

		claim := models.MissionClaim{
			UserID:    user.ID,
			MissionID: m.ID,
			Period:    period,
			RewardWin: m.Reward,
			CreatedAt: now,
		}
		if err := tx.Create(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errutil.AlreadyClaimed()
			}
			return err
		}

		_, err = moveWin(tx, user.ID, 0, m.Reward, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &MissionClaimResult{
		Success: true,
		Reward:  m.Reward,
		Message: fmt.Sprintf("+%.0f WIN claimed", m.Reward),
	}, nil
}

package services

import (
	"context"
	"strings"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/models"

	"go.uber.org/zap"
)

type WalletStatus struct {
	Connected     bool   `json:"connected"`
	WalletAddress string `json:"wallet_address"`
}

type WalletBalance struct {
	WalletAddress string  `json:"wallet_address"`
	LockedWin     float64 `json:"locked_win"`
	AvailableWin  float64 `json:"available_win"`
	TotalWin      float64 `json:"total_win"`
}

// ConnectWallet records the user's payout address. No chain call is made.
func (e *Engine) ConnectWallet(ctx context.Context, user models.User, address string) (*WalletStatus, error) {
	address = strings.TrimSpace(address)
	if !helpers.IsWalletAddress(address) {
		return nil, errutil.Validation("invalid wallet address")
	}

	if err := e.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("wallet_address", address).Error; err != nil {
		return nil, err
	}

	e.log.Info("wallet connected", zap.Uint("user_id", user.ID))
	return &WalletStatus{Connected: true, WalletAddress: address}, nil
}

func (e *Engine) DisconnectWallet(ctx context.Context, user models.User) (*WalletStatus, error) {
	if err := e.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("wallet_address", "").Error; err != nil {
		return nil, err
	}
	return &WalletStatus{}, nil
}

func (e *Engine) WalletStatus(ctx context.Context, userID uint) (*WalletStatus, error) {
	var user models.User
	if err := e.db.WithContext(ctx).Select("id", "wallet_address").Take(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &WalletStatus{Connected: user.WalletAddress != "", WalletAddress: user.WalletAddress}, nil
}

func (e *Engine) WalletBalance(ctx context.Context, userID uint) (*WalletBalance, error) {
	status, err := e.WalletStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	bal, err := loadBalance(e.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	return &WalletBalance{
		WalletAddress: status.WalletAddress,
		LockedWin:     roundWin(bal.LockedWin),
		AvailableWin:  roundWin(bal.AvailableWin),
		TotalWin:      roundWin(bal.TotalWin()),
	}, nil
}

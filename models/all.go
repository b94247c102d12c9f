package models

// All lists every table owned by the service, in migration order.
func All() []any {
	return []any{
		&User{},
		&UserBalance{},
		&Session{},
		&RevenueEvent{},
		&VestingSchedule{},
		&Settlement{},
		&SettlementEntry{},
		&MGMSubscription{},
		&MissionClaim{},
		&PayoutRequest{},
		&JobLock{},
		&PolicySetting{},
	}
}

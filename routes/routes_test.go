package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"winledger/config"
	"winledger/services"
	"winledger/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := &config.Config{
		Policy:         config.DefaultPolicy(),
		DefaultCountry: "US",
		JWTSecret:      "route-secret",
		JWTTTL:         time.Hour,
		AdminEmails:    []string{"admin@example.com"},
	}
	cfg.Scheduler.SettlementTimeout = time.Minute

	e := services.New(testutil.NewTestDB(t), cfg, services.WithCPMTable(services.FlatCPMTable(1000)))
	app := NewApp()
	Setup(app, e, zap.NewNop())
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func register(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	resp, body := call(t, app, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	token, ok := body["access_token"].(string)
	require.True(t, ok)
	assert.Equal(t, "bearer", body["token_type"])
	return token
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	resp, body := call(t, app, http.MethodGet, "/api/user/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["detail"])

	resp, _ = call(t, app, http.MethodGet, "/api/user/dashboard", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDashboardAfterRegister(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "player@example.com")

	resp, body := call(t, app, http.MethodGet, "/api/user/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "player@example.com", body["email"])
	assert.Len(t, body["referral_code"], 8)
	assert.EqualValues(t, 0, body["pending_revenue_usd"])
	assert.EqualValues(t, 0, body["total_win"])
}

func TestPlayCooldownReturns429(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "spinner@example.com")

	resp, body := call(t, app, http.MethodPost, "/api/game/play", token, map[string]any{
		"game_type":  "spin",
		"ad_watched": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.InDelta(t, 0.6, body["earned_usd"], 1e-9)
	assert.InDelta(t, 36, body["win_tokens"], 1e-9)

	resp, body = call(t, app, http.MethodPost, "/api/game/play", token, map[string]any{
		"game_type":  "spin",
		"ad_watched": true,
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.NotEmpty(t, body["detail"])
}

func TestPlayRejectsUnknownGame(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "quizzer@example.com")

	resp, body := call(t, app, http.MethodPost, "/api/game/play", token, map[string]any{
		"game_type":  "poker",
		"ad_watched": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["detail"], "invalid game_type")
}

func TestAdminRoutesForbidNonAdmins(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "player@example.com")

	for _, path := range []string{"/api/admin/create-settlement", "/api/admin/add-test-revenue"} {
		resp, body := call(t, app, http.MethodPost, path, token, map[string]any{"amount_usd": 1})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		assert.Equal(t, "Admin access required", body["detail"])
	}

	resp, _ := call(t, app, http.MethodGet, "/api/admin/settlement-history", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSettlementWorkflowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	adminToken := register(t, app, "admin@example.com")
	playerToken := register(t, app, "player@example.com")

	resp, _ := call(t, app, http.MethodPost, "/api/game/play", playerToken, map[string]any{
		"game_type":  "tap",
		"ad_watched": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, app, http.MethodPost, "/api/admin/create-settlement", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	proposal, ok := body["proposal"].(map[string]any)
	require.True(t, ok, body)
	id := proposal["_id"].(string)
	assert.Equal(t, "pending_approval", proposal["status"])
	assert.InDelta(t, 600, proposal["total_win_to_buy"], 1e-6)

	resp, body = call(t, app, http.MethodPost, "/api/admin/create-settlement", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.MsgNothingToSettle, body["message"])
	assert.Nil(t, body["proposal"])

	resp, body = call(t, app, http.MethodPost, "/api/admin/execute-settlement", adminToken, map[string]any{
		"settlement_id":          id,
		"transaction_signatures": []string{"sig1"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "settlement must be approved first", body["detail"])

	resp, _ = call(t, app, http.MethodPost, "/api/admin/approve-settlement/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = call(t, app, http.MethodPost, "/api/admin/execute-settlement", adminToken, map[string]any{
		"settlement_id":          id,
		"transaction_signatures": []string{"sig1, sig2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	st := body["settlement"].(map[string]any)
	assert.Equal(t, "executed", st["status"])
	assert.ElementsMatch(t, []any{"sig1", "sig2"}, st["transaction_signatures"])

	resp, body = call(t, app, http.MethodPost, "/api/admin/execute-settlement", adminToken, map[string]any{
		"settlement_id":          id,
		"transaction_signatures": []string{"sig3"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "settlement already executed", body["detail"])

	resp, body = call(t, app, http.MethodGet, "/api/user/win-balance", playerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 420, body["locked_win"], 1e-6)
	assert.EqualValues(t, 1, body["vesting_count"])

	resp, body = call(t, app, http.MethodGet, "/api/admin/settlement-history", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["settlements"], 1)

	resp, body = call(t, app, http.MethodGet, "/api/admin/pending-settlements", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["settlements"], 0)
}

func TestApproveSettlementMalformedID(t *testing.T) {
	app := newTestApp(t)
	adminToken := register(t, app, "admin@example.com")

	resp, body := call(t, app, http.MethodPost, "/api/admin/approve-settlement/nope", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["detail"])
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "leaver@example.com")

	resp, _ := call(t, app, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, app, http.MethodGet, "/api/user/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Session expired", body["detail"])
}

func TestAdminConfigAndAuditOverHTTP(t *testing.T) {
	app := newTestApp(t)
	adminToken := register(t, app, "admin@example.com")
	playerToken := register(t, app, "player@example.com")

	resp, body := call(t, app, http.MethodGet, "/api/admin/config", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.InDelta(t, 0.001, body["token_rate_usd"], 1e-9)
	assert.InDelta(t, 0.4, body["platform_fee"], 1e-9)
	assert.InDelta(t, 5, body["min_withdraw_usd"], 1e-9)

	resp, body = call(t, app, http.MethodPut, "/api/admin/config", adminToken, map[string]any{"platform_fee": 1.5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = call(t, app, http.MethodPut, "/api/admin/config", playerToken, map[string]any{"token_rate_usd": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, body)

	resp, body = call(t, app, http.MethodPut, "/api/admin/config", adminToken, map[string]any{
		"token_rate_usd": 0.002,
		"platform_fee":   0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	updated := body["config"].(map[string]any)
	assert.InDelta(t, 0.002, updated["token_rate_usd"], 1e-9)
	assert.InDelta(t, 0.1, updated["referral_rate"], 1e-9, "untouched fields keep their value")

	resp, body = call(t, app, http.MethodPost, "/api/game/play", playerToken, map[string]any{
		"game_type":  "tap",
		"ad_watched": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.InDelta(t, 0.5, body["earned_usd"], 1e-9)

	resp, body = call(t, app, http.MethodGet, "/api/user/dashboard", playerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 250, body["pending_tokens"], 1e-9)
	assert.InDelta(t, 0.002, body["token_rate_usd"], 1e-9)

	resp, body = call(t, app, http.MethodGet, "/api/admin/users?search=PLAYER", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	row := users[0].(map[string]any)
	assert.Equal(t, "player@example.com", row["email"])
	assert.NotNil(t, row["last_login"])

	resp, body = call(t, app, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total_users"])
	assert.EqualValues(t, 1, body["active_today"])
	assert.InDelta(t, 1, body["total_revenue"], 1e-9)

	resp, body = call(t, app, http.MethodGet, "/api/admin/events?event_type=game_play", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := body["events"].([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.Equal(t, "game_play", ev["event_type"])
	assert.Equal(t, "player@example.com", ev["user_email"])
	assert.InDelta(t, 30, ev["reward"], 1e-9)

	resp, _ = call(t, app, http.MethodGet, "/api/admin/events?event_type=login", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = call(t, app, http.MethodPost, "/api/admin/mgm/1/resolve", adminToken, map[string]any{"action": "burn"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	resp, body = call(t, app, http.MethodPost, "/api/admin/mgm/1/resolve", adminToken, map[string]any{"action": "refund"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)
}

package routes

import (
	"context"
	"time"

	"winledger/controllers/admin"
	"winledger/controllers/auth"
	"winledger/controllers/game"
	"winledger/controllers/mgm"
	"winledger/controllers/missions"
	"winledger/controllers/referral"
	"winledger/controllers/user"
	"winledger/controllers/wallet"
	"winledger/helpers"
	"winledger/middlewares"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewApp builds the fiber app with the error handler every route relies on.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "winledger",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"detail": fe.Message})
			}
			return helpers.JSONError(c, err)
		},
	})
}

func Setup(app *fiber.App, e *services.Engine, log *zap.Logger) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middlewares.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := e.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", auth.Register(e))
	authGroup.Post("/login", auth.Login(e))

	requireUser := middlewares.UserAuth(e)
	authGroup.Post("/logout", requireUser, auth.Logout(e))
	authGroup.Get("/me", requireUser, auth.Me)

	api.Get("/live-feed", game.LiveFeed(e))

	userGroup := api.Group("/user", requireUser)
	userGroup.Get("/dashboard", user.Dashboard(e))
	userGroup.Get("/win-balance", user.WinBalance(e))
	userGroup.Get("/kyc-status", user.KYCStatus(e))
	userGroup.Post("/vesting/claim", user.ClaimVesting(e))

	gameGroup := api.Group("/game", requireUser)
	gameGroup.Post("/play", game.Play(e))
	gameGroup.Get("/history", game.History(e))

	missionGroup := api.Group("/missions", requireUser)
	missionGroup.Get("/", missions.List(e))
	missionGroup.Post("/claim", missions.Claim(e))

	mgmGroup := api.Group("/mgm", requireUser)
	mgmGroup.Get("/status", mgm.Status(e))
	mgmGroup.Post("/subscribe", mgm.Subscribe(e))
	mgmGroup.Post("/claim", mgm.Claim(e))
	mgmGroup.Post("/cancel", mgm.Cancel(e))

	api.Get("/referral/stats", requireUser, referral.Stats(e))

	walletGroup := api.Group("/wallet", requireUser)
	walletGroup.Post("/connect", wallet.Connect(e))
	walletGroup.Get("/status", wallet.Status(e))
	walletGroup.Post("/disconnect", wallet.Disconnect(e))
	walletGroup.Get("/balance", wallet.Balance(e))
	walletGroup.Post("/withdraw", wallet.Withdraw(e))
	walletGroup.Get("/withdrawals", wallet.Withdrawals(e))

	adminGroup := api.Group("/admin", requireUser, middlewares.AdminOnly())
	adminGroup.Post("/create-settlement", admin.CreateSettlement(e))
	adminGroup.Post("/approve-settlement/:id", admin.ApproveSettlement(e))
	adminGroup.Post("/execute-settlement", admin.ExecuteSettlement(e))
	adminGroup.Get("/settlement-history", admin.SettlementHistory(e))
	adminGroup.Get("/pending-settlements", admin.PendingSettlements(e))
	adminGroup.Get("/settlements/:id", admin.GetSettlement(e))
	adminGroup.Post("/add-test-revenue", admin.AddTestRevenue(e))
	adminGroup.Get("/reconcile/:user_id", admin.Reconcile(e))
	adminGroup.Get("/payouts", admin.ListPayouts(e))
	adminGroup.Post("/payouts/:id/approve", admin.ApprovePayout(e))
	adminGroup.Post("/payouts/:id/reject", admin.RejectPayout(e))
	adminGroup.Get("/config", admin.GetConfig(e))
	adminGroup.Put("/config", admin.UpdateConfig(e))
	adminGroup.Get("/users", admin.Users(e))
	adminGroup.Get("/stats", admin.Stats(e))
	adminGroup.Get("/events", admin.Events(e))
	adminGroup.Get("/mgm/held", admin.HeldMGM(e))
	adminGroup.Post("/mgm/:id/resolve", admin.ResolveMGM(e))
}

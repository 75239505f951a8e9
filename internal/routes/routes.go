package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachBillingBack/internal/config"
	"github.com/saeid-a/CoachBillingBack/internal/handlers"
	"github.com/saeid-a/CoachBillingBack/internal/middleware"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
	"github.com/saeid-a/CoachBillingBack/internal/services"
	billingws "github.com/saeid-a/CoachBillingBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	refundRepo := repository.NewRefundRequestRepository(db)
	payoutRepo := repository.NewPayoutRequestRepository(db)

	feedHub := billingws.NewHub()
	go feedHub.Run()

	feePolicy := services.FlatPlusPercentageFee{
		FlatMinor:  cfg.PayoutFlatFeeMinor,
		PercentBps: cfg.PayoutPercentFeeBps,
	}

	ledgerService := services.NewLedgerService(db, txRepo, cfg.Currency, feedHub)
	refundService := services.NewRefundService(db, refundRepo, txRepo, cfg.Currency, feedHub)
	payoutService := services.NewPayoutService(db, payoutRepo, feePolicy, cfg.Currency, feedHub)
	reportingService := services.NewReportingService(txRepo)
	billingService := services.NewBillingService(txRepo, refundRepo, reportingService)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	billingHandler := handlers.NewBillingHandler(billingService, ledgerService)
	refundHandler := handlers.NewRefundHandler(refundService)
	payoutHandler := handlers.NewPayoutHandler(payoutService)
	feedHandler := handlers.NewFeedHandler(feedHub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	billing := api.Group("/v1/billing", middleware.AuthRequired(cfg.JWTSecret))

	billing.Get("/dashboard/:party_id/:role", billingHandler.GetDashboard)
	billing.Post("/payments", billingHandler.RecordPayment)
	billing.Get("/transactions", billingHandler.ListTransactions)
	billing.Get("/transactions/:id", billingHandler.GetTransaction)

	refunds := billing.Group("/refunds")
	refunds.Post("", refundHandler.Submit)
	refunds.Get("", refundHandler.List)
	refunds.Patch("/:id", refundHandler.Review)
	refunds.Get("/remaining/:payment_id", refundHandler.RemainingRefundable)

	payouts := billing.Group("/payouts")
	payouts.Get("/pending-earnings", payoutHandler.PendingEarnings)
	payouts.Post("/request", payoutHandler.Submit)
	payouts.Get("/my-requests", payoutHandler.MyRequests)
	payouts.Patch("/:id", payoutHandler.Resolve)

	api.Use("/v1/billing/feed", feedHandler.WebSocketAuth)
	api.Get("/v1/billing/feed", websocket.New(feedHandler.HandleWebSocket))
}

package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-bank/atlas_core/internal/account"
	"github.com/atlas-bank/atlas_core/internal/config"
	"github.com/atlas-bank/atlas_core/internal/fraud"
	"github.com/atlas-bank/atlas_core/internal/middleware"
	"github.com/atlas-bank/atlas_core/internal/notification"
	"github.com/atlas-bank/atlas_core/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. In development the
// in-memory stores substitute for Postgres and Redis; anywhere else both are
// mandatory.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var accountStore account.Store
	var transferStore transfer.Store
	if d.DB != nil {
		accountStore = account.NewPostgresStore(d.DB)
		transferStore = transfer.NewPostgresStore(d.DB)
	} else {
		accountStore = account.NewMemoryStore()
		transferStore = transfer.NewMemoryStore()
	}

	var velocity fraud.VelocityTracker
	if d.Cache != nil {
		velocity = fraud.NewRedisVelocityTracker(d.Cache)
	} else {
		velocity = fraud.NewMemoryVelocityTracker()
	}

	var primary fraud.Scorer
	if d.Cfg.FraudScorerURL != "" {
		primary = fraud.NewRemoteScorer(d.Cfg.FraudScorerURL, d.Cfg.FraudTimeout)
	}
	engine := fraud.NewEngine(primary, velocity, d.Cfg.FraudTimeout, d.Logger)

	ledger := account.NewLedger(accountStore, d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	coordinator := transfer.NewCoordinator(transferStore, ledger, engine, notifier, d.Logger,
		d.Cfg.SettleAttempts, d.Cfg.SettleBackoff)

	accountHandler := account.NewHandler(ledger)
	transferHandler := transfer.NewHandler(coordinator)

	api := app.Group("/api/v1")
	operator := middleware.OperatorAuth(d.Cfg.OperatorTokenHash)

	accounts := api.Group("/accounts")
	accounts.Post("/", accountHandler.Open)
	accounts.Get("/number/:number", accountHandler.GetByNumber)
	accounts.Get("/:id", accountHandler.Get)
	accounts.Get("/:id/balance", accountHandler.Balance)
	accounts.Get("/:id/transactions", transferHandler.ListByAccount)
	accounts.Post("/:id/activate", operator, accountHandler.Activate)
	accounts.Post("/:id/freeze", operator, accountHandler.Freeze)
	accounts.Post("/:id/unfreeze", operator, accountHandler.Unfreeze)
	accounts.Post("/:id/close", operator, accountHandler.Close)

	transfers := api.Group("/transfers")
	if d.Cache != nil {
		transfers.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	transfers.Post("/", transferHandler.Initiate)
	transfers.Get("/", operator, transferHandler.ListByDateRange)
	transfers.Get("/stats", operator, transferHandler.Stats)
	transfers.Get("/review", operator, transferHandler.ListPendingReview)
	transfers.Get("/reference/:reference", transferHandler.GetByReference)
	transfers.Get("/:id", transferHandler.Get)
	transfers.Post("/:id/resolve", operator, transferHandler.Resolve)
	transfers.Post("/:id/cancel", transferHandler.Cancel)
	transfers.Post("/:id/reverse", operator, transferHandler.Reverse)

	return nil
}

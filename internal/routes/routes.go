package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mbongo-pay/mbongo_pay/internal/config"
	"github.com/mbongo-pay/mbongo_pay/internal/ledger"
	"github.com/mbongo-pay/mbongo_pay/internal/middleware"
	"github.com/mbongo-pay/mbongo_pay/internal/notification"
	"github.com/mbongo-pay/mbongo_pay/internal/payments"
	"github.com/mbongo-pay/mbongo_pay/internal/user"
	"github.com/mbongo-pay/mbongo_pay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Dev mode may run without Postgres/Redis on in-memory stores; anywhere
	// else they are mandatory.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	var userRepo user.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		userRepo = user.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewMemoryStore()
		userRepo = user.NewMemoryRepository()
	}

	engine := ledger.NewEngine(store, userRepo, ledger.WithLockTimeout(d.Cfg.LockTimeout))
	userSvc := user.NewService(userRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(engine, notifier)

	userHandler := user.NewHandler(userSvc)
	walletHandler := wallet.NewHandler(engine)
	paymentHandler := payments.NewHandler(paymentSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterUserRoutes(api, userHandler)
	RegisterWalletRoutes(api, walletHandler)
	RegisterPaymentRoutes(api, paymentHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

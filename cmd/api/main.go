package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/pos-ledger/internal/application/billing"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/orders"
	"github.com/jhoicas/pos-ledger/internal/application/returns"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	inframongo "github.com/jhoicas/pos-ledger/internal/infrastructure/mongo"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/pos-ledger/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/pos-ledger/internal/interfaces/http"
	"github.com/jhoicas/pos-ledger/pkg/config"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	var notifier repository.ChangeNotifier = repository.NoopNotifier{}
	if cfg.Redis.Addr != "" {
		rn := infraredis.NewNotifier(
			infraredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
			cfg.Redis.ChannelPrefix,
		)
		if err := rn.Ping(ctx); err != nil {
			// El canal de cambios es opcional: se arranca igual y cada publicación fallida queda en warn.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no disponible")
		}
		defer rn.Close()
		notifier = rn
	}
	publisher := feed.NewPublisher(notifier, log.Component("feed"))

	stockLedger := inventory.NewLedger(cfg.Ledger.AllowNegativeStock)
	inventoryUC := inventory.NewUseCase(store, stockLedger, publisher, log.Component("inventory"))
	invoiceEngine := billing.NewInvoiceEngine(store, stockLedger, publisher, log.Component("billing"))
	settlement := billing.NewPaymentSettlement(store, publisher, log.Component("billing"))
	returnEngine := returns.NewEngine(store, stockLedger, publisher, log.Component("returns"))
	workflow := orders.NewWorkflow(store, publisher, log.Component("orders"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Inventory:  inventoryUC,
		Invoices:   invoiceEngine,
		Settlement: settlement,
		Returns:    returnEngine,
		Orders:     workflow,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// openStore construye el DocumentStore según STORE_DRIVER y devuelve su función de cierre.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.DocumentStore, func()) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		store := postgres.NewDocumentStore(pool, cfg.Ledger.MaxTxAttempts)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("esquema de documentos")
		}
		return store, pool.Close
	case config.StoreMongo:
		client, db, err := inframongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a MongoDB")
		}
		return inframongo.NewDocumentStore(client, db, cfg.Ledger.MaxTxAttempts), func() {
			if err := inframongo.Disconnect(client); err != nil {
				log.Error().Err(err).Msg("desconexión de MongoDB")
			}
		}
	default:
		log.Warn().Msg("almacén en memoria: los datos se pierden al reiniciar")
		return memory.NewDocumentStore(memory.WithMaxAttempts(cfg.Ledger.MaxTxAttempts)), func() {}
	}
}

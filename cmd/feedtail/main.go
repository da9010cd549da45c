// feedtail se suscribe al canal de cambios en Redis y los imprime como JSON por línea.
// Sirve para depurar los refrescos de dashboards y reportes.
//
// Uso: go run ./cmd/feedtail [colección ...]   (por defecto todas las colecciones del núcleo)
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	infraredis "github.com/jhoicas/pos-ledger/internal/infrastructure/redis"
	"github.com/jhoicas/pos-ledger/pkg/config"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "feedtail"})
	if cfg.Redis.Addr == "" {
		log.Fatal().Msg("REDIS_ADDR no configurado")
	}

	collections := os.Args[1:]
	if len(collections) == 0 {
		collections = []string{
			entity.CollectionItems,
			entity.CollectionSales,
			entity.CollectionPurchases,
			entity.CollectionSalesReturns,
			entity.CollectionPurchaseReturns,
			entity.CollectionOrders,
			entity.CollectionStockAdjustments,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := infraredis.NewNotifier(infraredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.ChannelPrefix)
	defer n.Close()

	changes, err := n.Subscribe(ctx, collections...)
	if err != nil {
		log.Fatal().Err(err).Msg("suscripción")
	}
	log.Info().Strs("collections", collections).Msg("escuchando cambios")

	enc := json.NewEncoder(os.Stdout)
	for c := range changes {
		if err := enc.Encode(c); err != nil {
			log.Error().Err(err).Msg("escribir cambio")
		}
	}
	log.Info().Msg("feedtail detenido")
}

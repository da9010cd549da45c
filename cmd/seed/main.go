// seed importa un catálogo de ítems desde CSV al almacén configurado (STORE_DRIVER) y emite un
// token JWT de desarrollo para la empresa indicada.
//
// Uso: go run ./cmd/seed -company <id> [-user <id>] [-latin1] [catalogo.csv]
// Columnas: name,mrp,purchasePrice,stock,restockQuantity[,barcode]
// Exportaciones de cajas antiguas suelen venir en ISO-8859-1: usar -latin1.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	inframongo "github.com/jhoicas/pos-ledger/internal/infrastructure/mongo"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/pos-ledger/pkg/config"
	"github.com/jhoicas/pos-ledger/pkg/jwt"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

func main() {
	companyID := flag.String("company", "", "companyId de los ítems (obligatorio)")
	userID := flag.String("user", "seed", "userId registrado en los documentos")
	latin1 := flag.Bool("latin1", false, "el CSV está en ISO-8859-1")
	flag.Parse()
	if *companyID == "" {
		fmt.Fprintln(os.Stderr, "-company es obligatorio")
		os.Exit(2)
	}
	csvPath := "catalogo.csv"
	if flag.NArg() > 0 {
		csvPath = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed"})

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén")
	}
	defer closeStore()

	f, err := os.Open(csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir CSV")
	}
	defer f.Close()

	var r io.Reader = f
	if *latin1 {
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	rows, err := readCatalogue(r)
	if err != nil {
		log.Fatal().Err(err).Msg("leer CSV")
	}

	uc := inventory.NewUseCase(store, inventory.NewLedger(cfg.Ledger.AllowNegativeStock), feed.NewPublisher(nil, log), log)
	created := 0
	for _, row := range rows {
		item, err := uc.CreateItem(ctx, *companyID, *userID, row)
		if err != nil {
			log.Error().Err(err).Str("name", row.Name).Msg("ítem omitido")
			continue
		}
		created++
		fmt.Printf("%s\t%s\t%d\n", item.ID, item.Name, item.Stock)
	}
	log.Info().Int("created", created).Int("rows", len(rows)).Msg("catálogo importado")

	if cfg.JWT.Secret != "" {
		tok, err := jwt.Generate(cfg.JWT.Secret, *userID, *companyID, cfg.JWT.Issuer, cfg.JWT.Expiration)
		if err != nil {
			log.Fatal().Err(err).Msg("generar token")
		}
		fmt.Println("Bearer " + tok)
	}
}

// readCatalogue convierte el CSV (con encabezado) en solicitudes de alta.
func readCatalogue(r io.Reader) ([]dto.CreateItemRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("encabezado: %w", err)
	}
	var out []dto.CreateItemRequest
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("línea %d: se esperan al menos 5 columnas", line)
		}
		mrp, err := decimal.NewFromString(rec[1])
		if err != nil {
			return nil, fmt.Errorf("línea %d mrp: %w", line, err)
		}
		purchase, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("línea %d purchasePrice: %w", line, err)
		}
		stock, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("línea %d stock: %w", line, err)
		}
		restock, err := strconv.ParseInt(rec[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("línea %d restockQuantity: %w", line, err)
		}
		req := dto.CreateItemRequest{
			Name:            strings.TrimSpace(rec[0]),
			MRP:             mrp,
			PurchasePrice:   purchase,
			Stock:           stock,
			RestockQuantity: restock,
			IsListed:        true,
		}
		if len(rec) > 5 {
			req.Barcode = strings.TrimSpace(rec[5])
		}
		out = append(out, req)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewDocumentStore(pool, cfg.Ledger.MaxTxAttempts)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case config.StoreMongo:
		client, db, err := inframongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		return inframongo.NewDocumentStore(client, db, cfg.Ledger.MaxTxAttempts), func() { _ = inframongo.Disconnect(client) }, nil
	default:
		return nil, nil, fmt.Errorf("seed requiere STORE_DRIVER=postgres o mongo (actual: %s)", cfg.Store.Driver)
	}
}

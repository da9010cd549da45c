package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// UseCase catálogo de ítems y ajustes manuales de stock.
type UseCase struct {
	store     repository.DocumentStore
	ledger    *Ledger
	publisher ChangePublisher
	log       *logger.Logger
}

// NewUseCase construye el caso de uso.
func NewUseCase(store repository.DocumentStore, ledger *Ledger, publisher ChangePublisher, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{store: store, ledger: ledger, publisher: publisher, log: log}
}

// CreateItem da de alta un ítem con su stock inicial.
func (uc *UseCase) CreateItem(ctx context.Context, companyID, userID string, in dto.CreateItemRequest) (*dto.ItemResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	for field, v := range map[string]decimal.Decimal{
		"mrp": in.MRP, "purchasePrice": in.PurchasePrice, "tax": in.TaxRate, "discount": in.Discount,
	} {
		if v.IsNegative() {
			return nil, domain.NewValidation(field, "no puede ser negativo")
		}
	}

	item := entity.Item{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		Name:            in.Name,
		MRP:             in.MRP,
		PurchasePrice:   in.PurchasePrice,
		TaxRate:         in.TaxRate,
		Discount:        in.Discount,
		Stock:           in.Stock,
		RestockQuantity: in.RestockQuantity,
		ItemGroupID:     in.ItemGroupID,
		IsListed:        in.IsListed,
		Barcode:         in.Barcode,
		ImageURL:        in.ImageURL,
		CreatedAt:       time.Now().UTC(),
	}
	err := uc.store.RunTransaction(ctx, func(tx repository.Tx) error {
		return tx.Set(entity.CollectionItems, item.ID, &item)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("item_id", item.ID).Str("company_id", companyID).Str("user_id", userID).Msg("ítem creado")
	uc.publisher.Created(ctx, companyID, entity.CollectionItems, item.ID)
	return toItemResponse(&item), nil
}

// GetItem devuelve el ítem con la alerta de reposición calculada.
func (uc *UseCase) GetItem(ctx context.Context, companyID, id string) (*dto.ItemResponse, error) {
	var item entity.Item
	if err := uc.store.Get(ctx, entity.CollectionItems, id, &item); err != nil {
		return nil, err
	}
	if item.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	item.ID = id
	return toItemResponse(&item), nil
}

// AdjustStock aplica un ajuste manual y guarda su registro en stockAdjustments en la misma transacción.
func (uc *UseCase) AdjustStock(ctx context.Context, companyID, userID, itemID string, in dto.AdjustStockRequest) (*dto.StockAdjustmentResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	adj := entity.StockAdjustment{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		Delta:     in.Delta,
		Reason:    strings.TrimSpace(in.Reason),
		CompanyID: companyID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	deltas := map[string]int64{itemID: in.Delta}
	err := uc.store.RunTransaction(ctx, func(tx repository.Tx) error {
		plan, err := uc.ledger.Plan(tx, companyID, deltas)
		if err != nil {
			return err
		}
		record := adj
		record.StockAfter = plan.StockAfter(itemID)
		if err := tx.Set(entity.CollectionStockAdjustments, record.ID, &record); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		adj = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("item_id", itemID).
		Int64("delta", in.Delta).
		Int64("stock_after", adj.StockAfter).
		Msg("ajuste de stock aplicado")
	uc.publisher.Created(ctx, companyID, entity.CollectionStockAdjustments, adj.ID)
	uc.publisher.Updated(ctx, companyID, feed.Ref{Collection: entity.CollectionItems, ID: itemID})
	return &dto.StockAdjustmentResponse{
		ID:         adj.ID,
		ItemID:     adj.ItemID,
		Delta:      adj.Delta,
		StockAfter: adj.StockAfter,
		Reason:     adj.Reason,
		CreatedAt:  adj.CreatedAt,
	}, nil
}

func toItemResponse(it *entity.Item) *dto.ItemResponse {
	return &dto.ItemResponse{
		ID:              it.ID,
		Name:            it.Name,
		MRP:             it.MRP,
		PurchasePrice:   it.PurchasePrice,
		TaxRate:         it.TaxRate,
		Discount:        it.Discount,
		Stock:           it.Stock,
		RestockQuantity: it.RestockQuantity,
		NeedsRestock:    it.NeedsRestock(),
		ItemGroupID:     it.ItemGroupID,
		IsListed:        it.IsListed,
		Barcode:         it.Barcode,
		ImageURL:        it.ImageURL,
		CreatedAt:       it.CreatedAt,
	}
}

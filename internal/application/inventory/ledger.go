package inventory

import (
	"fmt"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// Ledger aplica deltas de stock dentro de la transacción del caller. No reintenta ni abre
// transacciones propias: un error aborta la transacción que lo invocó.
type Ledger struct {
	allowNegative bool
}

// NewLedger construye el ledger. allowNegative=false rechaza deltas que dejen stock < 0.
func NewLedger(allowNegative bool) *Ledger {
	return &Ledger{allowNegative: allowNegative}
}

// StockPlan ítems leídos y deltas validados, pendientes de escribir.
type StockPlan struct {
	deltas map[string]int64
	ids    []string
	items  map[string]*entity.Item
}

// Plan lee (fase de lecturas) cada ítem con delta y cada id de alsoRead, valida empresa y política
// de stock negativo. No escribe nada: el caller puede seguir leyendo y luego llamar Apply.
func (l *Ledger) Plan(tx repository.Tx, companyID string, deltas map[string]int64, alsoRead ...string) (*StockPlan, error) {
	p := &StockPlan{
		deltas: deltas,
		ids:    ledger.SortedIDs(deltas),
		items:  make(map[string]*entity.Item, len(deltas)+len(alsoRead)),
	}
	read := make([]string, 0, len(p.ids)+len(alsoRead))
	read = append(read, p.ids...)
	read = append(read, alsoRead...)
	for _, id := range read {
		if _, ok := p.items[id]; ok {
			continue
		}
		var it entity.Item
		if err := tx.Get(entity.CollectionItems, id, &it); err != nil {
			return nil, err
		}
		if it.CompanyID != companyID {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrForbidden)
		}
		it.ID = id
		p.items[id] = &it
	}
	if !l.allowNegative {
		for _, id := range p.ids {
			d := p.deltas[id]
			if d < 0 && p.items[id].Stock+d < 0 {
				return nil, &domain.InsufficientStockError{ItemID: id, Stock: p.items[id].Stock, Delta: d}
			}
		}
	}
	return p, nil
}

// Item ítem leído por Plan (nil si no se leyó).
func (p *StockPlan) Item(id string) *entity.Item {
	return p.items[id]
}

// ItemIDs ids con delta distinto de cero, ordenados.
func (p *StockPlan) ItemIDs() []string {
	return p.ids
}

// StockAfter stock que quedará tras aplicar el plan.
func (p *StockPlan) StockAfter(id string) int64 {
	it := p.items[id]
	if it == nil {
		return 0
	}
	return it.Stock + p.deltas[id]
}

// Apply escribe un Increment por ítem. Debe ir después de todas las lecturas de la transacción.
func (p *StockPlan) Apply(tx repository.Tx) error {
	for _, id := range p.ids {
		if err := tx.Increment(entity.CollectionItems, id, "stock", p.deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDeltas lee todos los ítems y luego aplica los incrementos.
func (l *Ledger) ApplyDeltas(tx repository.Tx, companyID string, deltas map[string]int64) error {
	p, err := l.Plan(tx, companyID, deltas)
	if err != nil {
		return err
	}
	return p.Apply(tx)
}

// AdjustStock forma de un solo ítem de ApplyDeltas.
func (l *Ledger) AdjustStock(tx repository.Tx, companyID, itemID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return l.ApplyDeltas(tx, companyID, map[string]int64{itemID: delta})
}

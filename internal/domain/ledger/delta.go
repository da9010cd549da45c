// Package ledger contiene la lógica pura que mantiene consistentes stock, saldos y estados:
// cálculo de deltas diferenciales, estado de pago y secuencia de etapas de pedido.
// No depende del almacén de documentos; las transacciones la invocan desde sus closures.
package ledger

import "sort"

// Sign indica el sentido en que una línea afecta el stock.
type Sign int64

const (
	Increase Sign = 1  // compra, devolución de venta
	Decrease Sign = -1 // venta, devolución de compra
)

// Reverse devuelve el signo opuesto.
func (s Sign) Reverse() Sign { return -s }

// Line es la vista mínima de una línea (ítem y cantidad) que necesita el cálculo de deltas.
type Line struct {
	ItemID   string
	Quantity int64
}

// Quantities agrega las cantidades por ítem; líneas repetidas del mismo ítem se suman.
func Quantities(lines []Line) map[string]int64 {
	out := make(map[string]int64, len(lines))
	for _, l := range lines {
		out[l.ItemID] += l.Quantity
	}
	return out
}

// ComputeDelta devuelve, por ítem, el cambio neto de stock para pasar de oldLines a newLines:
// delta = sign × (qtyNueva − qtyAnterior). Ítems solo en oldLines se revierten por completo, ítems solo
// en newLines se aplican por completo. Los deltas cero se omiten.
//
// Crear:   ComputeDelta(nil, lines, sign)
// Borrar:  ComputeDelta(lines, nil, sign)
// Editar:  ComputeDelta(oldLines, newLines, sign)
func ComputeDelta(oldLines, newLines []Line, sign Sign) map[string]int64 {
	before := Quantities(oldLines)
	after := Quantities(newLines)
	deltas := make(map[string]int64, len(before)+len(after))
	for id, q := range after {
		deltas[id] = int64(sign) * (q - before[id])
	}
	for id, q := range before {
		if _, ok := after[id]; !ok {
			deltas[id] = -int64(sign) * q
		}
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}

// SortedIDs devuelve las claves del mapa de deltas en orden estable.
func SortedIDs(deltas map[string]int64) []string {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package repository

import "context"

// Tx handle de una transacción optimista. Todas las lecturas deben ocurrir antes de la primera
// escritura (domain.ErrReadAfterWrite si no). Los documentos se codifican como JSON.
//
// El closure que recibe un Tx puede ejecutarse varias veces: ante un conflicto de escritura el
// almacén descarta las escrituras pendientes y vuelve a correrlo con lecturas nuevas.
type Tx interface {
	// Get decodifica el documento en dest; *domain.NotFoundError si no existe.
	Get(collection, id string, dest any) error
	// Set crea o reemplaza el documento completo.
	Set(collection, id string, doc any) error
	// Update fusiona campos de primer nivel; *domain.NotFoundError si el documento no existe.
	Update(collection, id string, fields map[string]any) error
	// Delete elimina el documento (no falla si no existe).
	Delete(collection, id string) error
	// Increment suma delta al campo entero; *domain.NotFoundError si el documento no existe.
	Increment(collection, id, field string, delta int64) error
}

// DocumentStore puerto al almacén de documentos transaccional (DIP).
// Implementaciones: memory (proceso), postgres (JSONB), mongo.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string, dest any) error

	// RunTransaction ejecuta fn con reintento optimista. Un error devuelto por fn aborta la
	// transacción sin escrituras parciales y se devuelve tal cual. Agotados los intentos por
	// conflicto devuelve un error que cumple errors.Is(err, domain.ErrTransactionAborted).
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

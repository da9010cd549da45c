package repository

import (
	"context"
	"time"
)

// ChangeOp tipo de cambio publicado.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
	ChangeDeleted ChangeOp = "deleted"
)

// Change aviso de que un documento cambió tras un commit exitoso.
// Lo consumen dashboards y reportes para refrescar sus vistas.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         ChangeOp  `json:"op"`
	CompanyID  string    `json:"companyId"`
	At         time.Time `json:"at"`
}

// ChangeNotifier publica cambios. Nunca se invoca dentro de un closure de transacción.
type ChangeNotifier interface {
	Publish(ctx context.Context, changes ...Change) error
}

// NoopNotifier descarta los cambios (sin consumidores configurados).
type NoopNotifier struct{}

func (NoopNotifier) Publish(_ context.Context, _ ...Change) error { return nil }

package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrForbidden          = errors.New("acceso denegado")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrExcessPayment      = errors.New("el pago excede el saldo pendiente")
	ErrTransactionAborted = errors.New("transacción abortada tras reintentos")
	ErrReadAfterWrite     = errors.New("lectura después de escritura dentro de la transacción")
	ErrHasReturns         = errors.New("la factura tiene devoluciones registradas")
)

// NotFoundError identifica el documento que no existe. errors.Is(err, ErrNotFound) es true.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Collection, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound construye un NotFoundError.
func NewNotFound(collection, id string) error {
	return &NotFoundError{Collection: collection, ID: id}
}

// ValidationError describe un campo inválido en la entrada. errors.Is(err, ErrInvalidInput) es true.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidation construye un ValidationError.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ExcessPaymentError se devuelve cuando un abono dejaría el saldo (due) negativo.
type ExcessPaymentError struct {
	Due    decimal.Decimal
	Amount decimal.Decimal
}

func (e *ExcessPaymentError) Error() string {
	return fmt.Sprintf("%s: due=%s amount=%s", ErrExcessPayment.Error(), e.Due.String(), e.Amount.String())
}

func (e *ExcessPaymentError) Unwrap() error { return ErrExcessPayment }

// InsufficientStockError indica el ítem que quedaría con stock negativo.
type InsufficientStockError struct {
	ItemID string
	Stock  int64
	Delta  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: item=%s stock=%d delta=%d", ErrInsufficientStock.Error(), e.ItemID, e.Stock, e.Delta)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

package ledger

import (
	"strings"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// MethodDue es la clave reservada de paymentMethods que guarda el saldo pendiente.
const MethodDue = "due"

// Status estado de pago derivado; nunca se persiste.
type Status string

const (
	StatusPaid   Status = "Paid"
	StatusUnpaid Status = "Unpaid"
)

// PaymentState separa el saldo pendiente (Due) de los montos cobrados por método.
type PaymentState struct {
	Methods map[string]decimal.Decimal
	Due     decimal.Decimal
}

// NewPaymentState construye el estado a partir del mapa persistido paymentMethods (incluye "due").
func NewPaymentState(paymentMethods map[string]decimal.Decimal) PaymentState {
	p := PaymentState{Methods: make(map[string]decimal.Decimal, len(paymentMethods))}
	for method, amount := range paymentMethods {
		if method == MethodDue {
			p.Due = amount
			continue
		}
		p.Methods[method] = amount
	}
	return p
}

// Status Unpaid si due > 0, Paid en otro caso.
func (p PaymentState) Status() Status {
	if p.Due.GreaterThan(decimal.Zero) {
		return StatusUnpaid
	}
	return StatusPaid
}

// Total suma de todos los métodos más el saldo pendiente (= totalAmount).
func (p PaymentState) Total() decimal.Decimal {
	total := p.Due
	for _, amount := range p.Methods {
		total = total.Add(amount)
	}
	return total
}

// Map reconstruye el mapa persistido, siempre con la clave "due".
func (p PaymentState) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(p.Methods)+1)
	for method, amount := range p.Methods {
		out[method] = amount
	}
	out[MethodDue] = p.Due
	return out
}

// Validate exige nombres de método no vacíos y montos no negativos (incluido due).
func (p PaymentState) Validate() error {
	if p.Due.IsNegative() {
		return domain.NewValidation("paymentMethods.due", "no puede ser negativo")
	}
	for method, amount := range p.Methods {
		if strings.TrimSpace(method) == "" {
			return domain.NewValidation("paymentMethods", "método vacío")
		}
		if amount.IsNegative() {
			return domain.NewValidation("paymentMethods."+method, "no puede ser negativo")
		}
	}
	return nil
}

// Settle aplica un abono: due -= amount y Methods[method] += amount, en un solo valor nuevo.
// Si el nuevo due quedara negativo devuelve *domain.ExcessPaymentError y el estado original intacto.
func (p PaymentState) Settle(amount decimal.Decimal, method string) (PaymentState, error) {
	method = strings.TrimSpace(method)
	if method == "" || method == MethodDue {
		return p, domain.NewValidation("method", "método de pago inválido")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return p, domain.NewValidation("amount", "debe ser mayor que cero")
	}
	newDue := p.Due.Sub(amount)
	if newDue.IsNegative() {
		return p, &domain.ExcessPaymentError{Due: p.Due, Amount: amount}
	}
	next := PaymentState{Methods: make(map[string]decimal.Decimal, len(p.Methods)+1), Due: newDue}
	for m, a := range p.Methods {
		next.Methods[m] = a
	}
	next.Methods[method] = next.Methods[method].Add(amount)
	return next, nil
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/billing"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// InvoiceHandler ventas (/api/sales) o compras (/api/purchases) según invoiceType.
type InvoiceHandler struct {
	engine      *billing.InvoiceEngine
	settlement  *billing.PaymentSettlement
	invoiceType entity.InvoiceType
}

// NewInvoiceHandler construye el handler para un tipo de factura.
func NewInvoiceHandler(engine *billing.InvoiceEngine, settlement *billing.PaymentSettlement, t entity.InvoiceType) *InvoiceHandler {
	return &InvoiceHandler{engine: engine, settlement: settlement, invoiceType: t}
}

// Create godoc
// @Summary      Crear venta o compra y aplicar su delta de stock
// @Tags         invoices
// @Security     Bearer
// @Param        body  body  dto.CreateInvoiceRequest  true  "partyName, items, paymentMethods (incluye due)"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	inv, err := h.engine.CreateInvoice(c.Context(), companyID, userID, h.invoiceType, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// GetByID GET /:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	companyID, _, ok := actor(c)
	if !ok {
		return nil
	}
	inv, err := h.engine.GetInvoice(c.Context(), companyID, h.invoiceType, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inv)
}

// Update PUT /:id (edición diferencial)
func (h *InvoiceHandler) Update(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.EditInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	inv, err := h.engine.EditInvoice(c.Context(), companyID, userID, h.invoiceType, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inv)
}

// Delete DELETE /:id
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	if err := h.engine.DeleteInvoice(c.Context(), companyID, userID, h.invoiceType, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SettlePayment godoc
// @Summary      Abonar al saldo pendiente
// @Tags         invoices
// @Security     Bearer
// @Param        body  body  dto.SettlePaymentRequest  true  "amount, method"
// @Success      200   {object}  dto.InvoiceResponse
// @Failure      409   {object}  dto.ErrorResponse  "EXCESS_PAYMENT"
// @Router       /api/sales/{id}/payments [post]
func (h *InvoiceHandler) SettlePayment(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.SettlePaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	inv, err := h.settlement.SettlePayment(c.Context(), companyID, userID, h.invoiceType, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inv)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/orders"
)

// OrderHandler pedidos de clientes.
type OrderHandler struct {
	wf *orders.Workflow
}

// NewOrderHandler construye el handler.
func NewOrderHandler(wf *orders.Workflow) *OrderHandler {
	return &OrderHandler{wf: wf}
}

// Create POST /api/orders
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	order, err := h.wf.CreateOrder(c.Context(), companyID, userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetByID GET /api/orders/:id
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	companyID, _, ok := actor(c)
	if !ok {
		return nil
	}
	order, err := h.wf.GetOrder(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// Advance POST /api/orders/:id/advance
func (h *OrderHandler) Advance(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	res, err := h.wf.Advance(c.Context(), companyID, userID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
)

// ItemHandler catálogo de ítems y ajustes de stock (protegido).
type ItemHandler struct {
	uc *inventory.UseCase
}

// NewItemHandler construye el handler.
func NewItemHandler(uc *inventory.UseCase) *ItemHandler {
	return &ItemHandler{uc: uc}
}

// Create POST /api/items
func (h *ItemHandler) Create(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.CreateItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item, err := h.uc.CreateItem(c.Context(), companyID, userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetByID GET /api/items/:id
func (h *ItemHandler) GetByID(c *fiber.Ctx) error {
	companyID, _, ok := actor(c)
	if !ok {
		return nil
	}
	item, err := h.uc.GetItem(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// AdjustStock godoc
// @Summary      Ajuste manual de stock
// @Tags         items
// @Security     Bearer
// @Param        body  body  dto.AdjustStockRequest  true  "delta (+/-), reason"
// @Success      201   {object}  dto.StockAdjustmentResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/items/{id}/adjustments [post]
func (h *ItemHandler) AdjustStock(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	adj, err := h.uc.AdjustStock(c.Context(), companyID, userID, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(adj)
}

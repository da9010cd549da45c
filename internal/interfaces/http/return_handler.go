package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/returns"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// ReturnHandler devoluciones de venta o de compra según sourceType.
type ReturnHandler struct {
	engine     *returns.Engine
	sourceType entity.InvoiceType
}

// NewReturnHandler construye el handler.
func NewReturnHandler(engine *returns.Engine, sourceType entity.InvoiceType) *ReturnHandler {
	return &ReturnHandler{engine: engine, sourceType: sourceType}
}

// Create POST /
func (h *ReturnHandler) Create(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.CreateReturnRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	ret, err := h.engine.CreateReturn(c.Context(), companyID, userID, h.sourceType, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ret)
}

// GetByID GET /:id
func (h *ReturnHandler) GetByID(c *fiber.Ctx) error {
	companyID, _, ok := actor(c)
	if !ok {
		return nil
	}
	ret, err := h.engine.GetReturn(c.Context(), companyID, h.sourceType, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ret)
}

// Update PUT /:id
func (h *ReturnHandler) Update(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	var in dto.EditReturnRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	ret, err := h.engine.EditReturn(c.Context(), companyID, userID, h.sourceType, c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ret)
}

// Delete DELETE /:id
func (h *ReturnHandler) Delete(c *fiber.Ctx) error {
	companyID, userID, ok := actor(c)
	if !ok {
		return nil
	}
	if err := h.engine.DeleteReturn(c.Context(), companyID, userID, h.sourceType, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

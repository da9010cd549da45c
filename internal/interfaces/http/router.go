package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/billing"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/orders"
	"github.com/jhoicas/pos-ledger/internal/application/returns"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Inventory  *inventory.UseCase
	Invoices   *billing.InvoiceEngine
	Settlement *billing.PaymentSettlement
	Returns    *returns.Engine
	Orders     *orders.Workflow
	JWTSecret  string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	items := api.Group("/items")
	itemHandler := NewItemHandler(deps.Inventory)
	items.Post("/", itemHandler.Create)
	items.Get("/:id", itemHandler.GetByID)
	items.Post("/:id/adjustments", itemHandler.AdjustStock)

	registerInvoices(api.Group("/sales"), NewInvoiceHandler(deps.Invoices, deps.Settlement, entity.InvoiceTypeCredit))
	registerInvoices(api.Group("/purchases"), NewInvoiceHandler(deps.Invoices, deps.Settlement, entity.InvoiceTypeDebit))

	registerReturns(api.Group("/sales-returns"), NewReturnHandler(deps.Returns, entity.InvoiceTypeCredit))
	registerReturns(api.Group("/purchase-returns"), NewReturnHandler(deps.Returns, entity.InvoiceTypeDebit))

	ordersGroup := api.Group("/orders")
	orderHandler := NewOrderHandler(deps.Orders)
	ordersGroup.Post("/", orderHandler.Create)
	ordersGroup.Get("/:id", orderHandler.GetByID)
	ordersGroup.Post("/:id/advance", orderHandler.Advance)
}

func registerInvoices(g fiber.Router, h *InvoiceHandler) {
	g.Post("/", h.Create)
	g.Get("/:id", h.GetByID)
	g.Put("/:id", h.Update)
	g.Delete("/:id", h.Delete)
	g.Post("/:id/payments", h.SettlePayment)
}

func registerReturns(g fiber.Router, h *ReturnHandler) {
	g.Post("/", h.Create)
	g.Get("/:id", h.GetByID)
	g.Put("/:id", h.Update)
	g.Delete("/:id", h.Delete)
}

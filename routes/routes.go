package routes

import (
	"coinops/controllers/hardware"
	"coinops/controllers/machine"
	"coinops/controllers/rule"
	"coinops/controllers/session"
	"coinops/events"
	"coinops/middlewares"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Machine     *machine.Handler
	Rule        *rule.Handler
	Session     *session.Handler
	Hardware    *hardware.Handler
	Broadcaster *events.Broadcaster

	PressRatePerSec float64
	PressRateBurst  int
}

func Setup(app *fiber.App, h Handlers) {
	machineroutes := app.Group("/machines")
	machineroutes.Post("/", h.Machine.Create)
	machineroutes.Get("/", h.Machine.List)
	machineroutes.Get("/:id", h.Machine.Get)
	machineroutes.Put("/:id", h.Machine.Update)
	machineroutes.Delete("/:id", h.Machine.Delete)

	machineroutes.Post("/:id/balance/add", h.Machine.AddBalance)
	machineroutes.Post("/:id/balance/withdraw", h.Machine.WithdrawBalance)
	machineroutes.Get("/:id/transactions", h.Machine.ListTransactions)

	machineroutes.Get("/:id/bands", h.Machine.ListBands)
	machineroutes.Put("/:id/bands", h.Machine.BulkApplyBands)
	machineroutes.Put("/:id/bands/:key", h.Machine.SetBandPercentage)

	machineroutes.Post("/:id/rules/jackpot", h.Rule.AttachJackpot)
	machineroutes.Post("/:id/rules/manual", h.Rule.AttachManual)
	machineroutes.Delete("/:id/rules", h.Rule.Clear)
	machineroutes.Get("/:id/rules/active", h.Rule.Active)

	sessionroutes := app.Group("/sessions")
	sessionroutes.Get("/", h.Session.List)
	sessionroutes.Get("/:sid", h.Session.Get)

	// trusted machine-controller input
	hwroutes := app.Group("/hw", middlewares.HardwareAuth())
	hwroutes.Post("/sessions/start", h.Hardware.Start)
	hwroutes.Post("/sessions/press",
		middlewares.PressRateLimiter(h.PressRatePerSec, h.PressRateBurst), h.Hardware.Press)
	hwroutes.Post("/sessions/complete", h.Hardware.Complete)
	hwroutes.Post("/sessions/cancel", h.Hardware.Cancel)

	// dashboard event stream
	app.Use("/ws", events.UpgradeGuard)
	app.Get("/ws", h.Broadcaster.Handler())
}

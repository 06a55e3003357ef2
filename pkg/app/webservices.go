package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleTime is the get current clock time web handler.
func (app *App) HandleTime() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request time")

		dt, src := app.clock.Now()
		return ctx.JSON(fiber.Map{
			"time":     dt.String(),
			"source":   src.String(),
			"datetime": dt,
		})
	}
}

// HandleStatus is the get decoder and synchronization status web handler.
func (app *App) HandleStatus() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request status")

		return ctx.JSON(app.status())
	}
}

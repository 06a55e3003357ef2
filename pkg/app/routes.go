package app

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initDefaultRoutes initializes the applications default routes.
//  These are the routes which always are the same in every application.
//  Things like user api, version, ...
func (app *App) initDefaultRoutes() {
	api := app.web.Group("/")
	if app.config.Webserver.Webservices["version"] {
		api.Get("/version", app.HandleVersion())
	}
	if app.config.Webserver.Webservices["health"] {
		api.Get("/health", app.HandleHealth())
	}
	if app.config.Webserver.Webservices["time"] {
		api.Get("/time", app.HandleTime())
	}
	if app.config.Webserver.Webservices["status"] {
		api.Get("/status", app.HandleStatus())
	}
	if app.config.Webserver.Webservices["metrics"] {
		api.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
}

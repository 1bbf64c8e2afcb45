package http

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Checker verifica una dependencia externa (BD, Redis). Devuelve nil si está disponible.
type Checker func(ctx context.Context) error

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName string
	// Checks dependencias consultadas por /ready, por nombre.
	Checks map[string]Checker
	// CheckTimeout tope de cada verificación; 0 usa 2s.
	CheckTimeout time.Duration
}

// NewApp crea la aplicación Fiber con los timeouts del servicio y recuperación de panics.
func NewApp(appName string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Second * 10,
		IdleTimeout:           time.Second * 60,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	return app
}

// Router registra las rutas operativas. El núcleo de inventario no expone rutas de negocio.
func Router(app *fiber.App, deps RouterDeps) {
	timeout := deps.CheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})
	app.Get("/ready", readyHandler(deps.Checks, timeout))
}

func readyHandler(checks map[string]Checker, timeout time.Duration) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		results := make(fiber.Map, len(names))
		ready := true
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			err := checks[name](ctx)
			cancel()
			if err != nil {
				ready = false
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}

package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"voicebook/docs"
	"voicebook/internal/repository"
	"voicebook/internal/service"
	"voicebook/internal/storage"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Store           storage.Storage
	Uploads         service.UploadService
	Pipeline        service.Pipeline
	Runs            repository.RunRepository
	Checks          []Check
	AudioExtensions []string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Fixed paths go first: /:folder/:filename would otherwise shadow them.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Runs == nil {
		d.Runs = repository.NopRuns{}
	}

	app.Get("/health", HealthCheck(d.Checks...))
	app.Get("/healthz", LivenessProbe())
	app.Get("/swagger/*", Swagger())

	api := app.Group("/api")
	api.Get("/runs", ListRuns(d.Runs))
	api.Get("/runs/:id", GetRun(d.Runs))

	app.Get("/", Index(d.Store, d.Uploads, d.Pipeline.Mode(), d.AudioExtensions...))
	app.Get("/script.js", Script())
	app.Post("/upload", UploadAudio(d.Pipeline))
	app.Post("/upload_book", UploadBook(d.Uploads))
	app.Get("/:folder/:filename", ServeFile(d.Store))
}

// Swagger serves the UI with host and scheme taken from the incoming request.
func Swagger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}

package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/upload", h.UploadStream, h.UploadForm)

	app.Get("/download/:category/:filename", h.Download)
	app.Get("/download/:filename", h.DownloadLegacy)

	app.Get("/api/files", h.ListFiles)
}

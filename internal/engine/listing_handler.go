package engine

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"lan-drop/internal/storage"
)

type fileEntry struct {
	Name          string           `json:"name"`
	Size          int64            `json:"size"`
	FormattedSize string           `json:"formattedSize"`
	Date          time.Time        `json:"date"`
	Type          storage.Category `json:"type"`
	Path          string           `json:"path"`
}

// ListFiles handles GET /api/files: a live scan of every category, newest first.
func (h *Handler) ListFiles(c *fiber.Ctx) error {
	files, err := h.storage.List(c.UserContext())
	if err != nil {
		h.requestLog(c).WithError(err).Error("Listing files failed")
		return StorageError(err)
	}

	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, fileEntry{
			Name:          f.Name,
			Size:          f.Size,
			FormattedSize: storage.FormatSize(f.Size),
			Date:          f.ModTime,
			Type:          f.Category,
			Path:          f.Path(),
		})
	}
	return c.JSON(fiber.Map{"success": true, "files": entries})
}

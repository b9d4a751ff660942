package engine

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"lan-drop/internal/storage"
)

// Handler serves the transfer routes on top of a FileStorage.
type Handler struct {
	storage storage.FileStorage
	log     logrus.FieldLogger
}

func NewHandler(fs storage.FileStorage, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{storage: fs, log: log}
}

// requestLog tags log lines with the request ID set by the requestid middleware.
func (h *Handler) requestLog(c *fiber.Ctx) logrus.FieldLogger {
	fields := logrus.Fields{"remote": c.IP()}
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		fields["request_id"] = id
	}
	return h.log.WithFields(fields)
}

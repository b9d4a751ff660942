package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"lan-drop/internal/storage"
)

// UploadStream handles POST /upload?filename=<name> with the raw file as the
// body. Requests without a filename fall through to UploadForm.
func (h *Handler) UploadStream(c *fiber.Ctx) error {
	filename := utils.CopyString(c.Query("filename"))
	if filename == "" {
		return c.Next()
	}
	log := h.requestLog(c).WithField("filename", filename)

	body := c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}
	if n := c.Request().Header.ContentLength(); n >= 0 {
		body = &lengthReader{r: body, remaining: int64(n)}
	}

	info, err := h.storage.Save(c.UserContext(), filename, body)
	if err != nil {
		return h.uploadFailed(log, err)
	}

	log.WithFields(logrus.Fields{
		"stored":   info.Path(),
		"size":     humanize.IBytes(uint64(info.Size)),
		"category": info.Category,
	}).Info("Upload completed")

	return c.JSON(fiber.Map{
		"success":       true,
		"folder":        info.Category,
		"filename":      info.Name,
		"size":          info.Size,
		"formattedSize": storage.FormatSize(info.Size),
		"message":       fmt.Sprintf("%s uploaded successfully", info.Name),
	})
}

// UploadForm handles multipart uploads with one or more "files" parts.
func (h *Handler) UploadForm(c *fiber.Ctx) error {
	log := h.requestLog(c)

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		return ValidationError("No files uploaded")
	}

	saved := make([]fiber.Map, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return StorageError(fmt.Errorf("open form file: %w", err))
		}
		info, err := h.storage.Save(c.UserContext(), fh.Filename, src)
		src.Close()
		if err != nil {
			return h.uploadFailed(log.WithField("filename", fh.Filename), err)
		}
		log.WithFields(logrus.Fields{
			"stored": info.Path(),
			"size":   humanize.IBytes(uint64(info.Size)),
		}).Info("Form upload stored")
		saved = append(saved, fiber.Map{
			"name": info.Name,
			"size": storage.FormatSize(info.Size),
			"type": info.Category,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("%d file(s) uploaded successfully", len(saved)),
		"files":   saved,
	})
}

func (h *Handler) uploadFailed(log logrus.FieldLogger, err error) error {
	appErr := fromStorage(err, "File")
	switch {
	case errors.Is(err, storage.ErrTransferAborted):
		log.WithError(err).Warn("Upload aborted, partial file removed")
	case appErr.Status >= fiber.StatusInternalServerError:
		log.WithError(err).Error("Upload failed")
	}
	return appErr
}

// lengthReader turns an early end of stream into io.ErrUnexpectedEOF so a
// client that disconnects mid-body is never mistaken for a complete upload.
type lengthReader struct {
	r         io.Reader
	remaining int64
}

func (l *lengthReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if err == io.EOF && l.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err == nil && l.remaining == 0 {
		err = io.EOF
	}
	return n, err
}

package engine

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"lan-drop/internal/storage"
)

// Download handles GET /download/:category/:filename, honoring a single
// byte range when the client sends one.
func (h *Handler) Download(c *fiber.Ctx) error {
	category, ok := storage.ParseCategory(c.Params("category"))
	if !ok {
		return ValidationError("Invalid folder type")
	}
	name := pathParam(c, "filename")

	f, info, err := h.storage.Open(c.UserContext(), category, name)
	if err != nil {
		appErr := fromStorage(err, "File")
		if appErr.Status >= fiber.StatusInternalServerError {
			h.requestLog(c).WithError(err).Error("Open for download failed")
		}
		return appErr
	}

	span := byteRange{start: 0, end: info.Size - 1}
	status := fiber.StatusOK
	if header := c.Get(fiber.HeaderRange); header != "" {
		span, err = parseByteRange(header, info.Size)
		if err != nil {
			f.Close()
			if errors.Is(err, errRangeNotSatisfiable) {
				c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", info.Size))
				c.Status(fiber.StatusRequestedRangeNotSatisfiable)
				return nil
			}
			return ValidationError(fmt.Sprintf("Malformed range %q", header))
		}
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", span.start, span.end, info.Size))
	}

	escaped := url.PathEscape(info.Name)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, escaped, escaped))
	c.Status(status)

	length := span.length()
	if length <= 0 {
		f.Close()
		return nil
	}

	h.requestLog(c).WithFields(logrus.Fields{
		"file":  info.Path(),
		"start": span.start,
		"bytes": humanize.IBytes(uint64(length)),
	}).Debug("Download started")

	// fasthttp closes the stream once the body is written or the client leaves.
	c.Context().SetBodyStream(&fileSection{
		SectionReader: io.NewSectionReader(f, span.start, length),
		f:             f,
	}, int(length))
	return nil
}

// DownloadLegacy handles GET /download/:filename by searching every category
// and redirecting to the canonical address.
func (h *Handler) DownloadLegacy(c *fiber.Ctx) error {
	name := pathParam(c, "filename")

	category, err := h.storage.Locate(c.UserContext(), name)
	if err != nil {
		return fromStorage(err, "File")
	}
	return c.Redirect(fmt.Sprintf("/download/%s/%s", category, url.PathEscape(name)), fiber.StatusFound)
}

// pathParam returns a route parameter with percent-encoding removed.
func pathParam(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

type fileSection struct {
	*io.SectionReader
	f *os.File
}

func (s *fileSection) Close() error {
	return s.f.Close()
}

package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"lan-drop/internal/storage"
)

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrorResponse is the failure envelope shared by every route.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func ValidationError(msg string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Status: fiber.StatusBadRequest, Message: msg}
}

func NotFoundError(what string) *AppError {
	return &AppError{Code: "NOT_FOUND", Status: fiber.StatusNotFound, Message: fmt.Sprintf("%s not found", what)}
}

func RangeNotSatisfiableError(size int64) *AppError {
	return &AppError{
		Code:    "RANGE_NOT_SATISFIABLE",
		Status:  fiber.StatusRequestedRangeNotSatisfiable,
		Message: fmt.Sprintf("Range outside of %d byte file", size),
	}
}

func TransferAbortedError() *AppError {
	return &AppError{Code: "TRANSFER_ABORTED", Status: fiber.StatusBadRequest, Message: "Upload aborted"}
}

func StorageError(err error) *AppError {
	return &AppError{Code: "STORAGE_ERROR", Status: fiber.StatusInternalServerError, Message: err.Error()}
}

// fromStorage maps storage package errors onto the HTTP taxonomy.
func fromStorage(err error, what string) *AppError {
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		return ValidationError("Invalid file name")
	case errors.Is(err, storage.ErrUnknownCategory):
		return ValidationError("Invalid folder type")
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError(what)
	case errors.Is(err, storage.ErrTransferAborted):
		return TransferAbortedError()
	default:
		return StorageError(err)
	}
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Success: false, Error: appErr.Message, Code: appErr.Code})
}

// ErrorHandler is the fiber.Config ErrorHandler for the transfer server.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return respondError(c, appErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return respondError(c, NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message))
		}

		log.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).WithError(err).Error("Unhandled request error")
		return respondError(c, NewAppError("INTERNAL_ERROR", fiber.StatusInternalServerError, "Internal server error"))
	}
}

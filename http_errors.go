package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the envelope for every failed request
type ErrorResponse struct {
	Exception string `json:"exception"`
}

// ErrorTranslator turns any error returned, or panic raised, further down the
// chain into the JSON error envelope. It must be the first handler mounted.
func ErrorTranslator(logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("recovered from panic", "panic", fmt.Sprint(r), "path", c.Path())
				err = writeError(c, http.StatusInternalServerError, KindInternalError)
			}
		}()

		if err = c.Next(); err == nil {
			return nil
		}

		return translateError(c, logger, err)
	}
}

func translateError(c *fiber.Ctx, logger Logger, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := strings.ReplaceAll(http.StatusText(fiberErr.Code), " ", "")
		if kind == "" {
			kind = KindInternalError
		}
		logger.Debug("routing error", "status", fiberErr.Code, "path", c.Path())
		return writeError(c, fiberErr.Code, kind)
	}

	kind := KindOf(err)
	status := StatusFor(kind)

	if status >= http.StatusInternalServerError {
		var richErr *goerrors.Error
		details := ""
		if goerrors.As(err, &richErr) {
			details = print.MaybePrettyJSON(richErr.Metadata)
		}
		logger.Error("request failed", "kind", kind, "path", c.Path(), "error", err.Error(), "details", details)
	} else {
		logger.Info("request rejected", "kind", kind, "status", status, "path", c.Path())
	}

	return writeError(c, status, kind)
}

func writeError(c *fiber.Ctx, status int, kind string) error {
	return c.Status(status).JSON(ErrorResponse{Exception: kind})
}

// Package echoambar serves ambar data destinations with echo
package echoambar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/ambar"
)

var _ Projector = (*ambar.Ambar)(nil)

// Projector is an interface for projecting events
type Projector interface {
	Project(ctx context.Context, projection streamstore.Projection, data []byte) error
}

// Wrap returns a func wrapper around Ambar projection handler which adapts it to echo.HandlerFunc.
// Ambar always receives 200 OK, the body carries the retry policy.
func Wrap(a Projector) func(projection streamstore.Projection) echo.HandlerFunc {
	return func(projection streamstore.Projection) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()

			req, err := io.ReadAll(r.Body)
			if err != nil {
				return err
			}

			err = a.Project(r.Context(), projection, req)
			if err != nil {
				slog.Default().Warn(
					"ambar projection failed",
					slog.String("path", c.Path()),
					slog.Any("error", err),
				)

				if errors.Is(err, ambar.ErrNoRetry) {
					return c.JSONBlob(http.StatusOK, []byte(ambar.SuccessResp))
				}

				if errors.Is(err, ambar.ErrKeepItGoing) {
					return c.JSONBlob(http.StatusOK, []byte(ambar.KeepGoingResp))
				}

				return c.JSONBlob(http.StatusOK, []byte(ambar.RetryResp))
			}

			return c.JSONBlob(http.StatusOK, []byte(ambar.SuccessResp))
		}
	}
}

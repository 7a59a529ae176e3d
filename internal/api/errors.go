package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
)

// statusFor maps engine errors to HTTP status codes. Store failures fall
// through to 500.
func statusFor(err error) int {
	var notApprovable *engine.NotApprovableError
	var dispatch *engine.GatewayDispatchError
	switch {
	case errors.Is(err, engine.ErrProjectNotFound), errors.Is(err, engine.ErrSectionNotFound):
		return http.StatusNotFound
	case errors.As(err, &notApprovable),
		errors.Is(err, engine.ErrInFlight),
		errors.Is(err, engine.ErrNothingStale),
		errors.Is(err, engine.ErrNotExportStage),
		errors.Is(err, engine.ErrProjectExists):
		return http.StatusConflict
	case errors.Is(err, blueprint.ErrUnknownStage), errors.Is(err, engine.ErrNotRegenerable):
		return http.StatusBadRequest
	case errors.As(err, &dispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/middleware"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/joshua-takyi/eventflow/internal/services"
)

// respondError maps service errors onto status codes. Anything unrecognised
// is logged and reported as a 500 without details.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verr     *services.ValidationError
		denied   *services.DeniedError
		conflict *services.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse(verr.Message, verr.Fields))
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, helpers.ErrorResponse(denied.Reason))
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, helpers.ApiResponse{
			Success: false,
			Error:   conflict.Error(),
			Data:    conflict.Conflicts,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, helpers.ErrorResponse(err.Error()))
	default:
		requestID, _ := c.Get("request_id")
		logger.Error("Request failed",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("internal server error"))
	}
}

func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
		return models.Actor{}, false
	}
	return actor, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse("invalid "+name, []string{name}))
		return uuid.Nil, false
	}
	return id, true
}

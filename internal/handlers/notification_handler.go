package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ListNotifications(inbox models.InboxRepo, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 || limit > 200 {
			c.JSON(http.StatusBadRequest, helpers.ErrorResponse("invalid limit parameter"))
			return
		}

		items, err := inbox.ListInbox(c.Request.Context(), actor.ID, limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(items, len(items)))
	}
}

func MarkNotificationRead(inbox models.InboxRepo, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse("invalid id", []string{"id"}))
			return
		}
		if err := inbox.MarkInboxRead(c.Request.Context(), actor.ID, id); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "Notification marked as read"))
	}
}

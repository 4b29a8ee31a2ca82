package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventflow/internal/helpers"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/joshua-takyi/eventflow/internal/services"
)

type decisionRequest struct {
	Comment       string `json:"comment"`
	Justification string `json:"justification"`
}

type overrideRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

func SubmitEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req services.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
			return
		}

		ev, err := a.Submit(c.Request.Context(), actor, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(ev, "Event request submitted"))
	}
}

func ListMyEvents(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		events, err := a.ListMine(c.Request.Context(), actor)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(events, len(events)))
	}
}

func GetEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		details, err := a.GetEvent(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(details, "Event retrieved"))
	}
}

func EventConflicts(av *services.AvailabilityService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		conflicts, err := av.ConflictsFor(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(conflicts, len(conflicts)))
	}
}

func ApproveEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req decisionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
				return
			}
		}

		res, err := a.Approve(c.Request.Context(), actor, id, req.Comment)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(res, "Event approved"))
	}
}

type justifiedAction func(ctx context.Context, actor models.Actor, id uuid.UUID, justification string) (*models.Event, error)

// decide wires the reject, withdraw and cancel endpoints, which share a body.
func decide(run justifiedAction, logger *slog.Logger, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
			return
		}
		ev, err := run(c.Request.Context(), actor, id, req.Justification)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(ev, message))
	}
}

func RejectEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return decide(a.Reject, logger, "Event rejected")
}

func WithdrawEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return decide(a.Withdraw, logger, "Event withdrawn")
}

func CancelEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return decide(a.Cancel, logger, "Event cancelled")
}

func OverrideEvent(a *services.ApprovalService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req overrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, helpers.ErrorWithMessage("invalid request payload", err.Error()))
			return
		}

		ev, err := a.Override(c.Request.Context(), actor, id, req.Status, req.Reason)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(ev, "Event status overridden"))
	}
}

func AttachDocument(d *services.DocumentService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, helpers.FieldErrorResponse("file is required", []string{"file"}))
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, logger, err)
			return
		}
		defer f.Close()

		doc, err := d.Attach(c.Request.Context(), actor, id, fh.Filename, fh.Size, f)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(doc, "Document attached"))
	}
}

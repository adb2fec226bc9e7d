package api

import (
	"net/http"

	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

type earlyAccessRequest struct {
	Email      string                         `json:"email" binding:"required,email"`
	IsPreorder bool                           `json:"isPreorder"`
	Variants   []service.EarlyAccessSelection `json:"variants"`
}

func (h *Handler) registerEarlyAccess(c *gin.Context) {
	var req earlyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, exists, err := h.svc.EarlyAccess.Register(c.Request.Context(), req.Email, req.IsPreorder, req.Variants)
	if err != nil {
		h.respondError(c, "Failed to register early access", err)
		return
	}

	message := "Email registered"
	if exists {
		message = "Email updated"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       message,
		"alreadyExists": exists,
		"data":          entry,
	})
}

func (h *Handler) listEarlyAccess(c *gin.Context) {
	stats, err := h.svc.EarlyAccess.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list early access emails", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

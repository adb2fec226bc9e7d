package api

import (
	"net/http"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.svc.Variants.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Variants.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.respondError(c, "Failed to get product", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var patch models.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Variants.UpdateProduct(c.Request.Context(), c.Param("productId"), patch)
	if err != nil {
		h.respondError(c, "Failed to update product", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type batchStatusRequest struct {
	BatchStatus           models.BatchStatus `json:"batch_status" binding:"required,oneof=available low soldout preorder"`
	EstimatedRestockDays  *int               `json:"estimated_restock_days"`
	EstimatedPreorderDays *int               `json:"estimated_preorder_delivery_days"`
}

func (h *Handler) updateBatchStatus(c *gin.Context) {
	var req batchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Variants.UpdateBatchStatus(c.Request.Context(), c.Param("productId"),
		req.BatchStatus, req.EstimatedRestockDays, req.EstimatedPreorderDays)
	if err != nil {
		h.respondError(c, "Failed to update batch status", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) listVariants(c *gin.Context) {
	variants, err := h.svc.Variants.ListVariants(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.respondError(c, "Failed to list variants", err)
		return
	}
	c.JSON(http.StatusOK, variants)
}

func (h *Handler) createVariant(c *gin.Context) {
	var in models.VariantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	variant, err := h.svc.Variants.CreateVariant(c.Request.Context(), c.Param("productId"), in)
	if err != nil {
		h.respondError(c, "Failed to create variant", err)
		return
	}
	c.JSON(http.StatusCreated, variant)
}

func (h *Handler) updateVariant(c *gin.Context) {
	var patch models.VariantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	variant, err := h.svc.Variants.UpdateVariant(c.Request.Context(), c.Param("variantId"), patch)
	if err != nil {
		h.respondError(c, "Failed to update variant", err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func (h *Handler) deleteVariant(c *gin.Context) {
	if err := h.svc.Variants.DeleteVariant(c.Request.Context(), c.Param("variantId")); err != nil {
		h.respondError(c, "Failed to delete variant", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type subscribeRequest struct {
	Email        string `json:"email" binding:"required,email"`
	VariantID    string `json:"variantId" binding:"required"`
	VariantQty   int    `json:"variantQty" binding:"gte=0"`
	VariantLabel string `json:"variantLabel"`
}

// subscribe never reports a duplicate as an error
func (h *Handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sub, exists, err := h.svc.Subscriptions.Subscribe(c.Request.Context(), req.VariantID, req.Email, req.VariantQty, req.VariantLabel)
	if err != nil {
		h.respondError(c, "Failed to register notification", err)
		return
	}

	if exists {
		c.JSON(http.StatusOK, gin.H{
			"message":       "You are already subscribed to notifications for this variant",
			"alreadyExists": true,
			"subscription":  sub,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "We will email you when this variant is back in stock",
		"alreadyExists": false,
		"subscription":  sub,
	})
}

func (h *Handler) listSubscriptions(c *gin.Context) {
	subs, err := h.svc.Subscriptions.List(c.Request.Context(), c.Query("variantId"))
	if err != nil {
		h.respondError(c, "Failed to list stock notifications", err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) listSubscriptionsForVariant(c *gin.Context) {
	subs, err := h.svc.Subscriptions.List(c.Request.Context(), c.Param("variantId"))
	if err != nil {
		h.respondError(c, "Failed to list stock notifications", err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// dispatchNotifications lets an operator retry pending notices for a variant
func (h *Handler) dispatchNotifications(c *gin.Context) {
	res, err := h.svc.Dispatcher.Dispatch(c.Request.Context(), c.Param("variantId"))
	if err != nil {
		h.respondError(c, "Failed to dispatch notifications", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

package api

import (
	"net/http"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// createOrder records an order whose payment outcome the client already knows
func (h *Handler) createOrder(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.svc.Checkout.CreateDirectOrder(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to create order", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	id := c.Param("id")
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to get order", err)
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) orderHistory(c *gin.Context) {
	history, err := h.svc.Orders.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get order history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// updateOrderStatus is the administrative transition entry point
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.svc.Orders.SetStatus(c.Request.Context(), c.Param("id"), req.Status, models.SourceAdministrative)
	if err != nil {
		h.respondError(c, "Failed to update order status", err)
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

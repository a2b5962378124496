package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
)

// CourierHandler exposes the endpoints couriers use from the field:
// taking an order out, settling cash with the customer and handing the
// collected money back to the operator.
type CourierHandler struct {
	orders   *order.Service
	payments *payment.Service
}

func NewCourierHandler(orders *order.Service, payments *payment.Service) *CourierHandler {
	return &CourierHandler{orders: orders, payments: payments}
}

func courierID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing courier identity"})
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing courier identity"})
		return 0, false
	}
	return id, true
}

// MarkOnDelivery flips a home delivery order to ON_DELIVERY once the
// courier leaves with it.
func (h *CourierHandler) MarkOnDelivery(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.MarkOnDelivery(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "order is out for delivery"})
}

// ConfirmCash records that the courier collected cash for an order. The
// payment becomes PAID and the order completes in the same step.
func (h *CourierHandler) ConfirmCash(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	courier, ok := courierID(c)
	if !ok {
		return
	}
	if err := h.payments.ConfirmCash(c.Request.Context(), id, courier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "cash payment confirmed"})
}

// MarkDelivered completes a digital order after the courier dropped it
// off. Cash orders complete through ConfirmCash instead.
func (h *CourierHandler) MarkDelivered(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Complete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "order completed"})
}

// Handover marks collected cash as handed back to the operator. Only the
// courier who collected it can hand it over, and only once.
func (h *CourierHandler) Handover(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	courier, ok := courierID(c)
	if !ok {
		return
	}
	if err := h.payments.Handover(c.Request.Context(), id, courier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "cash handed over"})
}

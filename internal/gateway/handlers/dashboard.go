package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
)

type DashboardHandler struct {
	orders   *order.Service
	payments *payment.Service
	store    repository.Store
	cache    *redis.Client
}

func NewDashboardHandler(orders *order.Service, payments *payment.Service, store repository.Store, cache *redis.Client) *DashboardHandler {
	return &DashboardHandler{orders: orders, payments: payments, store: store, cache: cache}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": name + " must be a positive id"})
		return 0, false
	}
	return uint(id), true
}

func operatorName(c *gin.Context) string {
	if v, ok := c.Get("username"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "operator"
}

// -- Orders --

type listOrdersQuery struct {
	Status   string `form:"status,omitempty"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

func (h *DashboardHandler) ListOrders(c *gin.Context) {
	var q listOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	filter := repository.OrderFilter{Limit: q.PageSize, Offset: (q.Page - 1) * q.PageSize}
	if q.Status != "" {
		st := models.OrderStatus(q.Status)
		filter.Status = &st
	}

	orders, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": out, "total": total})
}

func (h *DashboardHandler) AcceptOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Accept(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": string(o.Status)})
}

type advanceRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *DashboardHandler) AdvanceOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := h.orders.Advance(c.Request.Context(), id, models.OrderStatus(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": req.Status})
}

type assignCourierRequest struct {
	CourierID uint `json:"courier_id" binding:"required"`
}

func (h *DashboardHandler) AssignCourier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := h.orders.AssignCourier(c.Request.Context(), id, req.CourierID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *DashboardHandler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.orders.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -- Payments --

type verifyRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes,omitempty"`
}

func (h *DashboardHandler) VerifyPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := h.payments.Verify(c.Request.Context(), id, req.Approve, operatorName(c), req.Notes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DashboardHandler) RefundPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.payments.Refund(c.Request.Context(), id, operatorName(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -- Promos --

type promoRequest struct {
	Code         string  `json:"code" binding:"required"`
	Description  *string `json:"description,omitempty"`
	Type         string  `json:"type" binding:"required"`
	Value        int64   `json:"value"`
	MinPurchase  int64   `json:"min_purchase"`
	MaxDiscount  *int64  `json:"max_discount,omitempty"`
	UsageLimit   *int    `json:"usage_limit,omitempty"`
	PerUserLimit *int    `json:"per_user_limit,omitempty"`
	StartsAt     *string `json:"starts_at,omitempty"`
	EndsAt       *string `json:"ends_at,omitempty"`
	IsActive     bool    `json:"is_active"`
}

func (r promoRequest) toModel() (*models.Promo, error) {
	p := &models.Promo{
		Code:         normalizeCode(r.Code),
		Description:  r.Description,
		Type:         models.DiscountType(r.Type),
		Value:        r.Value,
		MinPurchase:  r.MinPurchase,
		MaxDiscount:  r.MaxDiscount,
		UsageLimit:   r.UsageLimit,
		PerUserLimit: r.PerUserLimit,
		IsActive:     r.IsActive,
	}
	for _, pair := range []struct {
		raw  *string
		dest **time.Time
	}{{r.StartsAt, &p.StartsAt}, {r.EndsAt, &p.EndsAt}} {
		if pair.raw == nil {
			continue
		}
		t, err := time.Parse(time.RFC3339, *pair.raw)
		if err != nil {
			return nil, err
		}
		*pair.dest = &t
	}
	return p, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *DashboardHandler) CreatePromo(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	p, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid date format, use RFC3339"})
		return
	}
	if err := h.store.CreatePromo(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "promo": p})
}

func (h *DashboardHandler) UpdatePromo(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	p, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid date format, use RFC3339"})
		return
	}

	existing, err := h.store.PromoByCode(c.Request.Context(), p.Code)
	if err == nil && existing.ID != id {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "promo code already exists"})
		return
	}

	p.ID = id
	if existing != nil && existing.ID == id {
		// The usage counter is owned by the order-creation path.
		p.UsageCount = existing.UsageCount
		p.CreatedAt = existing.CreatedAt
	}
	if err := h.store.UpdatePromo(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "promo": p})
}

func (h *DashboardHandler) ListPromos(c *gin.Context) {
	promos, err := h.store.ListPromos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "promos": promos})
}

// -- Menus --

type menuRequest struct {
	Name     string  `json:"name" binding:"required"`
	Price    int64   `json:"price" binding:"required,min=1"`
	Category *string `json:"category,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	IsActive bool    `json:"is_active"`
}

func (h *DashboardHandler) CreateMenu(c *gin.Context) {
	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	m := &models.Menu{
		Name:     req.Name,
		Price:    req.Price,
		Category: req.Category,
		ImageURL: req.ImageURL,
		IsActive: req.IsActive,
	}
	if err := h.store.CreateMenu(c.Request.Context(), m); err != nil {
		respondError(c, err)
		return
	}
	h.invalidateMenuCache(c)
	c.JSON(http.StatusCreated, gin.H{"success": true, "menu": m})
}

func (h *DashboardHandler) UpdateMenu(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	menus, err := h.store.MenusByIDs(c.Request.Context(), []uint{id})
	if err != nil {
		respondError(c, err)
		return
	}
	if len(menus) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "menu not found"})
		return
	}

	m := menus[0]
	m.Name = req.Name
	m.Price = req.Price
	m.Category = req.Category
	m.ImageURL = req.ImageURL
	m.IsActive = req.IsActive
	if err := h.store.UpdateMenu(c.Request.Context(), &m); err != nil {
		respondError(c, err)
		return
	}
	h.invalidateMenuCache(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "menu": m})
}

func (h *DashboardHandler) invalidateMenuCache(c *gin.Context) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Del(c.Request.Context(), menuCacheKey)
}

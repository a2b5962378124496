package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
	"github.com/imamnura/warung-enin-sub000/internal/storage"
)

const (
	menuCacheKey  = "storefront:menus"
	menuCacheTTL  = 5 * time.Minute
	maxProofBytes = 5 << 20
)

type StorefrontHandler struct {
	orders   *order.Service
	payments *payment.Service
	promos   *promo.Validator
	store    repository.Store
	proofs   storage.ProofStore
	cache    *redis.Client
}

func NewStorefrontHandler(orders *order.Service, payments *payment.Service, promos *promo.Validator, store repository.Store, proofs storage.ProofStore, cache *redis.Client) *StorefrontHandler {
	return &StorefrontHandler{
		orders:   orders,
		payments: payments,
		promos:   promos,
		store:    store,
		proofs:   proofs,
		cache:    cache,
	}
}

type checkoutItemRequest struct {
	MenuID   uint    `json:"menu_id" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,min=1"`
	Note     *string `json:"note,omitempty"`
}

type checkoutRequest struct {
	CustomerName   string                `json:"customer_name" binding:"required"`
	CustomerPhone  string                `json:"customer_phone" binding:"required"`
	CustomerEmail  *string               `json:"customer_email,omitempty"`
	DeliveryMethod string                `json:"delivery_method" binding:"required"`
	Address        *string               `json:"address,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
	PaymentMethod  string                `json:"payment_method" binding:"required"`
	PromoCode      string                `json:"promo_code,omitempty"`
	Items          []checkoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (h *StorefrontHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	items := make([]order.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.CartItem{MenuID: it.MenuID, Quantity: it.Quantity, Note: it.Note})
	}

	result, err := h.orders.Checkout(c.Request.Context(), order.CheckoutRequest{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		DeliveryMethod: models.DeliveryMethod(req.DeliveryMethod),
		Address:        req.Address,
		Notes:          req.Notes,
		PaymentMethod:  models.PaymentMethod(req.PaymentMethod),
		PromoCode:      req.PromoCode,
		Items:          items,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "order": result})
}

type validatePromoRequest struct {
	Code     string `json:"code" binding:"required"`
	Subtotal int64  `json:"subtotal" binding:"required,min=1"`
}

// ValidatePromo is the pre-checkout preview. No side effects: usage
// counters are untouched.
func (h *StorefrontHandler) ValidatePromo(c *gin.Context) {
	var req validatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	res, err := h.promos.Validate(c.Request.Context(), req.Code, req.Subtotal, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	if !res.Valid {
		c.JSON(http.StatusOK, gin.H{"success": true, "valid": false, "reason": res.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"valid":         true,
		"discount":      res.Discount,
		"free_delivery": res.FreeDelivery,
	})
}

func (h *StorefrontHandler) UploadProof(c *gin.Context) {
	number := c.Param("number")

	file, header, err := c.Request.FormFile("proof")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "proof image is required"})
		return
	}
	defer file.Close()

	if header.Size > maxProofBytes {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "proof image too large"})
		return
	}

	ref, err := h.proofs.Save(c.Request.Context(), number, file, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.payments.AttachProof(c.Request.Context(), number, ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"proof_image": ref,
		"status":      string(p.Status),
	})
}

func (h *StorefrontHandler) TrackOrder(c *gin.Context) {
	o, err := h.orders.Track(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": toOrderResponse(o)})
}

func (h *StorefrontHandler) ListMenus(c *gin.Context) {
	ctx := c.Request.Context()

	if menus, ok := h.cachedMenus(ctx); ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "menus": menus})
		return
	}

	menus, err := h.store.ListMenus(ctx, true)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cacheMenus(ctx, menus)
	c.JSON(http.StatusOK, gin.H{"success": true, "menus": menus})
}

func (h *StorefrontHandler) cachedMenus(ctx context.Context) ([]models.Menu, bool) {
	if h.cache == nil {
		return nil, false
	}
	raw, err := h.cache.Get(ctx, menuCacheKey).Result()
	if err != nil {
		return nil, false
	}
	var menus []models.Menu
	if err := json.Unmarshal([]byte(raw), &menus); err != nil {
		return nil, false
	}
	return menus, true
}

func (h *StorefrontHandler) cacheMenus(ctx context.Context, menus []models.Menu) {
	if h.cache == nil {
		return
	}
	raw, err := json.Marshal(menus)
	if err != nil {
		return
	}
	_ = h.cache.Set(ctx, menuCacheKey, raw, menuCacheTTL)
}

package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imamnura/warung-enin-sub000/internal/core"
	"github.com/imamnura/warung-enin-sub000/internal/database/models"
)

// respondError maps the error taxonomy onto HTTP statuses: bad input
// 400, unknown resource 404, lost race / already-resolved 409, business
// rule 422, anything else 500 with the detail kept out of the response.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case core.IsInvalid(err):
		status = http.StatusBadRequest
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsConflict(err):
		status = http.StatusConflict
	case core.IsRule(err):
		status = http.StatusUnprocessableEntity
	default:
		log.Printf("handler: %v", err)
		message = "internal error"
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

type orderItemResponse struct {
	MenuID    uint    `json:"menu_id"`
	MenuName  string  `json:"menu_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	Subtotal  int64   `json:"subtotal"`
	Note      *string `json:"note,omitempty"`
}

type paymentResponse struct {
	ID         uint    `json:"id"`
	Amount     int64   `json:"amount"`
	Method     string  `json:"method"`
	Status     string  `json:"status"`
	ProofImage *string `json:"proof_image,omitempty"`
}

type orderResponse struct {
	ID             uint                `json:"id"`
	Number         string              `json:"number"`
	Status         string              `json:"status"`
	DeliveryMethod string              `json:"delivery_method"`
	Address        *string             `json:"address,omitempty"`
	Notes          *string             `json:"notes,omitempty"`
	IsMember       bool                `json:"is_member"`
	Subtotal       int64               `json:"subtotal"`
	DeliveryFee    int64               `json:"delivery_fee"`
	Discount       int64               `json:"discount"`
	Total          int64               `json:"total"`
	PromoCode      *string             `json:"promo_code,omitempty"`
	CourierID      *uint               `json:"courier_id,omitempty"`
	CreatedAt      string              `json:"created_at"`
	CompletedAt    *string             `json:"completed_at,omitempty"`
	Items          []orderItemResponse `json:"items"`
	Payment        *paymentResponse    `json:"payment,omitempty"`
}

func toOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		Number:         o.Number,
		Status:         string(o.Status),
		DeliveryMethod: string(o.DeliveryMethod),
		Address:        o.Address,
		Notes:          o.Notes,
		IsMember:       o.IsMember,
		Subtotal:       o.Subtotal,
		DeliveryFee:    o.DeliveryFee,
		Discount:       o.Discount,
		Total:          o.Total,
		PromoCode:      o.PromoCode,
		CourierID:      o.CourierID,
		CreatedAt:      o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if o.CompletedAt != nil {
		s := o.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &s
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			MenuID:    it.MenuID,
			MenuName:  it.MenuName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			Note:      it.Note,
		})
	}
	if o.Payment != nil {
		resp.Payment = &paymentResponse{
			ID:         o.Payment.ID,
			Amount:     o.Payment.Amount,
			Method:     string(o.Payment.Method),
			Status:     string(o.Payment.Status),
			ProofImage: o.Payment.ProofImage,
		}
	}
	return resp
}

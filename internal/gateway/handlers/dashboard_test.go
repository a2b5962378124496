package handlers_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamnura/warung-enin-sub000/internal/database/models"
	"github.com/imamnura/warung-enin-sub000/internal/gateway/handlers"
	"github.com/imamnura/warung-enin-sub000/internal/notify"
	"github.com/imamnura/warung-enin-sub000/internal/repository"
	"github.com/imamnura/warung-enin-sub000/internal/services/order"
	"github.com/imamnura/warung-enin-sub000/internal/services/payment"
	"github.com/imamnura/warung-enin-sub000/internal/services/pricing"
	"github.com/imamnura/warung-enin-sub000/internal/services/promo"
)

func newDashboardServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemory()
	validator := promo.NewValidator(store)
	calc := pricing.NewCalculator(pricing.FeePolicy{Base: 5000, Member: 0, NonMember: 2000}, validator)
	orders := order.NewService(store, calc, notify.LogDispatcher{})
	payments := payment.NewService(store, notify.LogDispatcher{})
	dash := handlers.NewDashboardHandler(orders, payments, store, nil)

	r := gin.New()
	r.GET("/dashboard/orders", dash.ListOrders)
	r.POST("/dashboard/orders/:id/accept", dash.AcceptOrder)
	r.POST("/dashboard/payments/:id/verify", dash.VerifyPayment)

	return &testServer{router: r, store: store}
}

func seedDashboardOrder(t *testing.T, store *repository.Memory, method models.PaymentMethod) *models.Order {
	t.Helper()
	ctx := context.Background()
	c := &models.Customer{Name: "Budi Santoso", Phone: "081234567890"}
	require.NoError(t, store.CreateCustomer(ctx, c))
	o := &models.Order{
		CustomerID:     c.ID,
		DeliveryMethod: models.HomeDelivery,
		Status:         models.OrderPlaced,
		Total:          45000,
		Payment:        &models.Payment{Amount: 45000, Method: method, Status: models.PaymentPending},
	}
	require.NoError(t, store.CreateOrder(ctx, o))
	return o
}

func TestListOrdersEndpoint(t *testing.T) {
	ts := newDashboardServer(t)
	o := seedDashboardOrder(t, ts.store, models.PayCash)

	w := ts.do(t, http.MethodGet, "/dashboard/orders", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), o.Number)

	// An out-of-range page is clamped to the first one.
	w = ts.do(t, http.MethodGet, "/dashboard/orders?page=0", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), o.Number)
}

func TestAcceptOrderEndpoint(t *testing.T) {
	ts := newDashboardServer(t)
	cash := seedDashboardOrder(t, ts.store, models.PayCash)
	path := "/dashboard/orders/" + strconv.Itoa(int(cash.ID)) + "/accept"

	w := ts.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "PROCESSING")

	// Replays surface as conflicts, digital orders as rule violations.
	w = ts.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	digital := seedDashboardOrder(t, ts.store, models.PayBankTransfer)
	w = ts.do(t, http.MethodPost, "/dashboard/orders/"+strconv.Itoa(int(digital.ID))+"/accept", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodPost, "/dashboard/orders/99/accept", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	ts := newDashboardServer(t)
	o := seedDashboardOrder(t, ts.store, models.PayBankTransfer)

	ctx := context.Background()
	ok, err := ts.store.AttachPaymentProof(ctx, o.Payment.ID, "proofs/abc.jpg")
	require.NoError(t, err)
	require.True(t, ok)

	w := ts.do(t, http.MethodPost, "/dashboard/payments/1/verify", map[string]interface{}{
		"approve": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := ts.store.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)
	assert.Equal(t, models.PaymentVerified, got.Payment.Status)

	// One-shot.
	w = ts.do(t, http.MethodPost, "/dashboard/payments/1/verify", map[string]interface{}{
		"approve": true,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

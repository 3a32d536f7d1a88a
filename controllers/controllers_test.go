package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
	"harvest/models"
	"harvest/repository"
	"harvest/repository/memory"
	"harvest/routes"
	"harvest/services"
	"harvest/utils"
)

const testSecret = "test-secret"

var orderNumberPattern = regexp.MustCompile(`^FM\d{8}\d{3}$`)

type envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
	Stats      map[string]any  `json:"stats"`
	Pagination *struct {
		CurrentPage  int `json:"current_page"`
		TotalPages   int `json:"total_pages"`
		TotalItems   int `json:"total_items"`
		ItemsPerPage int `json:"items_per_page"`
	} `json:"pagination"`
}

type server struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	fees := services.DefaultFees()

	router := gin.New()
	routes.SetupRoutes(router, routes.Services{
		Carts: services.NewCartService(store, fees),
		Checkout: services.NewCheckoutService(store, services.CheckoutConfig{
			Fees:          fees,
			Currency:      currency.IDR,
			PaymentWindow: 24 * time.Hour,
			Bank:          services.BankAccount{BankName: "Bank Tani", AccountNumber: "1234567890", AccountName: "PT Harvest"},
		}, nil),
		Orders: services.NewOrderService(store, nil),
	}, testSecret)

	return &server{t: t, store: store, router: router}
}

func (s *server) token(userID string) string {
	s.t.Helper()

	token, err := utils.GenerateToken(testSecret, userID, "buyer", time.Hour)
	require.NoError(s.t, err)
	return token
}

// do sends the request as userID, anonymously when userID is empty.
func (s *server) do(method, path, userID string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *server) seller() models.User {
	u := models.User{ID: gofakeit.UUID(), Name: gofakeit.Company(), Email: gofakeit.Email()}
	s.store.PutUser(u)
	return u
}

func (s *server) product(seller models.User, price int64) models.Product {
	p := models.Product{
		ID:            uuid.MustParse(gofakeit.UUID()),
		SellerID:      seller.ID,
		Name:          gofakeit.Vegetable(),
		Unit:          "kg",
		Price:         decimal.NewFromInt(price),
		StockQuantity: 50,
		MinimumOrder:  1,
		IsAvailable:   true,
	}
	s.store.PutProduct(p)
	return p
}

// order stores an order directly, bypassing checkout.
func (s *server) order(buyerID string, seller models.User, status models.OrderStatus) models.Order {
	s.t.Helper()

	now := time.Now().UTC()
	o := models.Order{
		ID:            uuid.New(),
		OrderNumber:   services.NewOrderNumber(now),
		CheckoutID:    uuid.New(),
		BuyerID:       buyerID,
		SellerID:      seller.ID,
		Status:        status,
		Subtotal:      decimal.NewFromInt(10000),
		DeliveryFee:   decimal.NewFromInt(15000),
		ServiceFee:    decimal.NewFromInt(2000),
		TotalDiscount: decimal.Zero,
		TotalAmount:   decimal.NewFromInt(27000),
		Currency:      currency.IDR,
		PaymentMethod: services.DefaultPaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		PaymentDueAt:  now.Add(24 * time.Hour),
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			ProductID:   uuid.New(),
			ProductName: "Spinach",
			Unit:        "bunch",
			Quantity:    2,
			UnitPrice:   decimal.NewFromInt(5000),
			Discount:    decimal.Zero,
			Subtotal:    decimal.NewFromInt(10000),
		}},
		DeliveryMethod:   services.DefaultDeliveryMethod,
		DeliveryTimeSlot: services.DefaultDeliveryTimeSlot,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// same retry as checkout, a random suffix may already be taken
	for attempt := 1; ; attempt++ {
		err := s.store.PutOrder(o)
		if err == nil {
			break
		}
		require.ErrorIs(s.t, err, repository.ErrDuplicateOrderNumber)
		require.Less(s.t, attempt, 100, "no free order number left for today")
		o.OrderNumber = services.NewOrderNumber(now)
	}

	return o
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

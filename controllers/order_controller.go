package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"harvest/metrics"
	"harvest/models"
	"harvest/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type createOrderRequest struct {
	CartItemIDs       []uuid.UUID `json:"cart_item_ids"`
	DeliveryAddressID *string     `json:"delivery_address_id"`
	DeliveryMethod    string      `json:"delivery_method"`
	DeliveryDate      *string     `json:"delivery_date"`
	DeliveryTimeSlot  string      `json:"delivery_time_slot"`
	PaymentMethod     string      `json:"payment_method"`
	Notes             *string     `json:"notes"`
}

// POST /api/v1/orders
func CreateOrder(checkout *services.CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "create")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var request createOrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		if len(request.CartItemIDs) == 0 {
			fail(c, http.StatusBadRequest, "No cart items selected")
			return
		}

		var deliveryDate *time.Time
		if request.DeliveryDate != nil && *request.DeliveryDate != "" {
			date, err := parseDate(*request.DeliveryDate)
			if err != nil {
				fail(c, http.StatusBadRequest, "Invalid delivery date")
				return
			}
			deliveryDate = &date
		}

		result, err := checkout.Checkout(c.Request.Context(), userID, services.CheckoutRequest{
			CartItemIDs:       request.CartItemIDs,
			DeliveryAddressID: request.DeliveryAddressID,
			DeliveryMethod:    request.DeliveryMethod,
			DeliveryDate:      deliveryDate,
			DeliveryTimeSlot:  request.DeliveryTimeSlot,
			PaymentMethod:     request.PaymentMethod,
			Notes:             request.Notes,
			IdempotencyKey:    strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)),
		})
		if err != nil {
			failWith(c, err, "Failed to create order")
			return
		}

		if result.Replayed {
			success(c, http.StatusOK, toCheckoutDTO(result), "Order already created")
			return
		}

		metrics.RecordOrdersCreated(len(result.Orders))
		success(c, http.StatusCreated, toCheckoutDTO(result), "Order created successfully")
	}
}

// GET /api/v1/orders
func GetUserOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "list")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		role := models.OrderRole(c.DefaultQuery("role", string(models.OrderRoleBuyer)))
		if role != models.OrderRoleBuyer && role != models.OrderRoleSeller {
			fail(c, http.StatusBadRequest, "Invalid role")
			return
		}

		status, ok := statusQuery(c)
		if !ok {
			return
		}

		page, limit, ok := pageQuery(c)
		if !ok {
			return
		}

		result, err := orders.ListOrders(c.Request.Context(), models.OrderFilter{
			UserID: userID,
			Role:   role,
			Status: status,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			failWith(c, err, "Failed to fetch orders")
			return
		}

		success(c, http.StatusOK, gin.H{
			"orders": lo.Map(result.Orders, func(o models.Order, _ int) orderSummaryDTO {
				return toOrderSummaryDTO(o, role)
			}),
			"pagination": toPaginationDTO(result),
		}, "")
	}
}

// GET /api/v1/orders/:id
func GetOrderDetails(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "details")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		orderID, ok := pathID(c, "order")
		if !ok {
			return
		}

		detail, err := orders.GetOrder(c.Request.Context(), userID, orderID)
		if err != nil {
			failWith(c, err, "Failed to fetch order")
			return
		}

		success(c, http.StatusOK, toOrderDetailDTO(detail), "")
	}
}

type cancelOrderRequest struct {
	Reason  string `json:"reason" binding:"required"`
	Details string `json:"details"`
}

// PATCH /api/v1/orders/:id/cancel
func CancelOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cancel")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		orderID, ok := pathID(c, "order")
		if !ok {
			return
		}

		var request cancelOrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		result, err := orders.CancelOrder(c.Request.Context(), userID, orderID, request.Reason, request.Details)
		if err != nil {
			failWith(c, err, "Failed to cancel order")
			return
		}

		success(c, http.StatusOK, toCancelDTO(result), "Order cancelled successfully")
	}
}

// statusQuery reads ?status=, where empty or "all" means no filter.
func statusQuery(c *gin.Context) (*models.OrderStatus, bool) {
	raw := c.Query("status")
	if raw == "" || raw == "all" {
		return nil, true
	}

	status, err := models.ToOrderStatus(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid order status")
		return nil, false
	}

	return &status, true
}

func pageQuery(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, "page must be a positive integer")
		return 0, 0, false
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageLimit)))
	if err != nil || limit < 1 || limit > models.MaxPageLimit {
		fail(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(models.MaxPageLimit))
		return 0, 0, false
	}

	return page, limit, true
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"harvest/models"
	"harvest/services"
)

// GET /api/v1/farmer/orders
func GetFarmerOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "farmer_list")

		sellerID, ok := currentUser(c)
		if !ok {
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

		result, stats, err := orders.SellerOrders(c.Request.Context(), sellerID, status, page, limit)
		if err != nil {
			failWith(c, err, "Failed to fetch orders")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "success",
			"data":       lo.Map(result.Orders, func(o models.Order, _ int) farmerOrderDTO { return toFarmerOrderDTO(o) }),
			"stats":      toSellerStatsDTO(stats),
			"pagination": toPaginationDTO(result),
		})
	}
}

// GET /api/v1/farmer/orders/:id
func GetFarmerOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "farmer_details")

		sellerID, ok := currentUser(c)
		if !ok {
			return
		}

		orderID, ok := pathID(c, "order")
		if !ok {
			return
		}

		order, err := orders.GetSellerOrder(c.Request.Context(), sellerID, orderID)
		if err != nil {
			failWith(c, err, "Failed to fetch order")
			return
		}

		success(c, http.StatusOK, toFarmerOrderDTO(order), "")
	}
}

type updateFarmerOrderRequest struct {
	Status           *string                      `json:"status"`
	TrackingNumber   services.Optional[string]    `json:"tracking_number"`
	EstimatedArrival services.Optional[time.Time] `json:"estimated_arrival"`
	CancelledReason  *string                      `json:"cancelled_reason"`
}

// PATCH /api/v1/farmer/orders/:id
func UpdateFarmerOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "update_status")

		sellerID, ok := currentUser(c)
		if !ok {
			return
		}

		orderID, ok := pathID(c, "order")
		if !ok {
			return
		}

		var request updateFarmerOrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		order, err := orders.UpdateSellerOrder(c.Request.Context(), sellerID, orderID, services.SellerOrderUpdate{
			Status:           request.Status,
			TrackingNumber:   request.TrackingNumber,
			EstimatedArrival: request.EstimatedArrival,
			CancelledReason:  request.CancelledReason,
		})
		if err != nil {
			failWith(c, err, "Failed to update order")
			return
		}

		success(c, http.StatusOK, toFarmerOrderUpdateDTO(order), "Order updated successfully")
	}
}

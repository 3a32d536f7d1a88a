package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"harvest/metrics"
	"harvest/middlewares"
	"harvest/models"
	"harvest/repository"
	"harvest/services"
)

func success(c *gin.Context, code int, data any, message string) {
	body := gin.H{"status": "success", "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

// failWith maps service errors to the HTTP taxonomy. Unknown errors are 500 with the raw error attached.
func failWith(c *gin.Context, err error, message string) {
	var (
		validationErr *services.ValidationError
		transitionErr *models.TransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		fail(c, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &transitionErr):
		fail(c, http.StatusBadRequest, transitionErr.Error())
	case errors.Is(err, models.ErrInvalidOrderStatus):
		fail(c, http.StatusBadRequest, "Invalid order status")
	case errors.Is(err, repository.ErrCartItemsChanged):
		fail(c, http.StatusBadRequest, "Cart items changed during checkout, please retry")
	case errors.Is(err, repository.ErrOrderNotFound):
		fail(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, repository.ErrCartItemNotFound):
		fail(c, http.StatusNotFound, "Cart item not found")
	case errors.Is(err, repository.ErrProductNotFound):
		fail(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, repository.ErrNoCartItems):
		fail(c, http.StatusNotFound, "No valid cart items found")
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": message,
			"error":   err.Error(),
		})
	}
}

// currentUser reads the caller set by AuthMiddleware and answers 401 when it is missing.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middlewares.ContextUserID)
	if userID == "" {
		fail(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}

func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// recordOperation counts the operation by the final response status.
func recordOperation(c *gin.Context, operation string) {
	status := c.Writer.Status()
	metrics.RecordOrderOperation(operation, status >= 200 && status < 300)
}

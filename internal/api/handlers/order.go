package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"qrmenu-service/internal/models"
	"qrmenu-service/internal/repositories/postgres"
	"qrmenu-service/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type OrderHandler struct {
	orderRepo *postgres.OrderRepository
}

func NewOrderHandler(orderRepo *postgres.OrderRepository) *OrderHandler {
	return &OrderHandler{orderRepo: orderRepo}
}

// CreateOrder godoc
// @Summary Place a new order
// @Description Persist an order placed from a table. Clients announce the order over the websocket channel themselves after this call succeeds.
// @Tags orders
// @Accept json
// @Produce json
// @Param order body models.CreateOrderRequest true "Order to place"
// @Success 201 {object} models.Order "Created order"
// @Failure 400 {object} models.ErrorResponse "Invalid request body"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}

	order := &models.Order{
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Status:       models.OrderStatusPending,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
		order.Total += item.Price * float64(item.Quantity)
	}

	if err := h.orderRepo.Create(c.Request.Context(), order); err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		return
	}

	response.Created(c, order)
}

// GetRestaurantOrders godoc
// @Summary List a restaurant's orders
// @Description Get all orders for a restaurant, newest first, items included
// @Tags orders
// @Produce json
// @Param id path int true "Restaurant ID"
// @Success 200 {array} models.Order "Orders"
// @Failure 400 {object} models.ErrorResponse "Invalid restaurant ID"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /restaurants/{id}/orders [get]
func (h *OrderHandler) GetRestaurantOrders(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, "invalid restaurant id")
		return
	}

	orders, err := h.orderRepo.FindByRestaurant(c.Request.Context(), uint(restaurantID))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		return
	}

	response.OK(c, orders)
}

// UpdateOrderStatus godoc
// @Summary Update an order's status
// @Description Authoritative status-change path. The websocket channel carries the same operation for realtime relaying; callers needing confirmation use this endpoint.
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param status body models.UpdateOrderStatusRequest true "New status"
// @Success 200 {object} models.Order "Updated order"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "Order not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, "invalid order id")
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}
	if !models.IsValidOrderStatus(req.Status) {
		response.Error(c, http.StatusBadRequest, response.ErrCodeStatusInvalid, req.Status)
		return
	}

	order, err := h.orderRepo.UpdateStatus(c.Request.Context(), uint(orderID), req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrCodeOrderNotFound, "")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		return
	}

	response.OK(c, order)
}

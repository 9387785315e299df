package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */

// Order statuses, in the normal kitchen progression.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusServed    = "served"
	OrderStatusCancelled = "cancelled"
)

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusServed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a placed order. Created through the REST path; the realtime
// channel only ever rewrites Status.
type Order struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RestaurantID uint        `gorm:"not null;index" json:"restaurantId"`
	TableID      uint        `gorm:"not null;index" json:"tableId"`
	CustomerName string      `gorm:"type:varchar(255)" json:"customerName"`
	Status       string      `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Total        float64     `gorm:"not null" json:"total"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	Restaurant Restaurant `gorm:"foreignKey:RestaurantID;references:ID" json:"-"`
	Table      Table      `gorm:"foreignKey:TableID;references:ID" json:"-"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	OrderID    uint    `gorm:"not null;index" json:"orderId"`
	MenuItemID uint    `gorm:"not null" json:"menuItemId"`
	Quantity   int     `gorm:"not null" json:"quantity"`
	Price      float64 `gorm:"not null" json:"price"`

	MenuItem MenuItem `gorm:"foreignKey:MenuItemID;references:ID" json:"-"`
}

/** -------------------- DTOs -------------------- */

type CreateOrderItemRequest struct {
	MenuItemID uint    `json:"menuItemId" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required,min=1"`
	Price      float64 `json:"price" binding:"required"`
}

type CreateOrderRequest struct {
	RestaurantID uint                     `json:"restaurantId" binding:"required"`
	TableID      uint                     `json:"tableId" binding:"required"`
	CustomerName string                   `json:"customerName"`
	Items        []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

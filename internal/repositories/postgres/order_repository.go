package postgres

import (
	"context"
	"fmt"

	"qrmenu-service/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindByRestaurant(ctx context.Context, restaurantID uint) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// UpdateStatus writes the new status and returns the updated record.
// Returns gorm.ErrRecordNotFound when no such order exists.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("invalid order status %q", status)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.FindByID(ctx, orderID)
}

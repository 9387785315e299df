package main

import (
	"log"
	"log/slog"

	"qrmenu-service/internal/config"
	"qrmenu-service/internal/database"
	"qrmenu-service/internal/models"

	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database seeding...")

	dsn := cfg.Database.URL
	if dsn == "" {
		dsn = database.BuildDSN(
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
		)
	}
	db, err := database.NewPostgresConnection(dsn)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	slog.Info("Database connection established")

	restaurant := &models.Restaurant{
		Name:    "Demo Bistro",
		Address: "1 Demo Street",
	}
	if err := db.FirstOrCreate(restaurant, models.Restaurant{Name: restaurant.Name}).Error; err != nil {
		log.Fatal("Failed to seed restaurant:", err)
	}
	slog.Info("Seeded restaurant", "id", restaurant.ID)

	for number := 1; number <= 6; number++ {
		table := &models.Table{
			RestaurantID: restaurant.ID,
			Number:       number,
			Capacity:     4,
		}
		err := db.Where(models.Table{RestaurantID: restaurant.ID, Number: number}).
			FirstOrCreate(table).Error
		if err != nil {
			slog.Warn("Table might already exist", "number", number, "error", err)
		} else {
			slog.Info("Seeded table", "number", number, "id", table.ID)
		}
	}

	menuItems := []struct {
		name        string
		description string
		price       float64
	}{
		{"Margherita Pizza", "Tomato, mozzarella, basil", 9.50},
		{"Carbonara", "Spaghetti, guanciale, pecorino", 11.00},
		{"Caesar Salad", "Romaine, parmesan, croutons", 7.50},
		{"Tiramisu", "Mascarpone, espresso, cocoa", 5.00},
		{"Espresso", "", 1.80},
	}

	for _, item := range menuItems {
		menuItem := &models.MenuItem{
			RestaurantID: restaurant.ID,
			Name:         item.name,
			Description:  item.description,
			Price:        item.price,
			Available:    true,
		}
		err := db.Where(models.MenuItem{RestaurantID: restaurant.ID, Name: item.name}).
			FirstOrCreate(menuItem).Error
		if err != nil {
			slog.Warn("Menu item might already exist", "name", item.name, "error", err)
		} else {
			slog.Info("Seeded menu item", "name", item.name, "id", menuItem.ID)
		}
	}

	seedDemoOrder(db, restaurant.ID)

	slog.Info("Database seeding completed!")
}

// seedDemoOrder creates one pending order so a fresh install has something
// on the staff dashboard.
func seedDemoOrder(db *gorm.DB, restaurantID uint) {
	var table models.Table
	if err := db.First(&table, "restaurant_id = ?", restaurantID).Error; err != nil {
		slog.Warn("No table to attach demo order to", "error", err)
		return
	}
	var item models.MenuItem
	if err := db.First(&item, "restaurant_id = ?", restaurantID).Error; err != nil {
		slog.Warn("No menu item to attach demo order to", "error", err)
		return
	}

	var count int64
	db.Model(&models.Order{}).Where("restaurant_id = ?", restaurantID).Count(&count)
	if count > 0 {
		return
	}

	order := &models.Order{
		RestaurantID: restaurantID,
		TableID:      table.ID,
		CustomerName: "Ana",
		Status:       models.OrderStatusPending,
		Total:        item.Price * 2,
		Items: []models.OrderItem{
			{MenuItemID: item.ID, Quantity: 2, Price: item.Price},
		},
	}
	if err := db.Create(order).Error; err != nil {
		slog.Warn("Failed to seed demo order", "error", err)
		return
	}
	slog.Info("Seeded demo order", "id", order.ID)
}

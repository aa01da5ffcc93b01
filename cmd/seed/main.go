package main

import (
	"time"

	"github.com/cartflow/internal/config"
	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加商品
	products := []models.Product{
		{Name: "Mechanical Keyboard", PriceAmount: models.NewMoney("129.00"), StockQuantity: 50},
		{Name: "Wireless Mouse", PriceAmount: models.NewMoney("49.90"), StockQuantity: 200},
		{Name: "USB-C Hub", PriceAmount: models.NewMoney("35.50"), StockQuantity: 80},
		{Name: "4K Monitor", PriceAmount: models.NewMoney("399.00"), StockQuantity: 10},
		{Name: "Laptop Stand", PriceAmount: models.NewMoney("25.00"), StockQuantity: 0},
	}
	for i := range products {
		if err := models.DB.Where("name = ?", products[i].Name).FirstOrCreate(&products[i]).Error; err != nil {
			stdLog.Fatalf("Failed to seed product %s: %v", products[i].Name, err)
		}
	}
	stdLog.Printf("Seeded %d products", len(products))

	now := time.Now()
	expiresAt := now.AddDate(0, 3, 0)
	keyboardID := products[0].ID

	// 添加优惠券
	coupons := []models.Coupon{
		{
			Code:           "WELCOME10",
			DiscountType:   constants.CouponDiscountFixed,
			DiscountValue:  models.NewMoney("10"),
			MinTotalPrice:  models.NewMoney("50"),
			MaxTotalUses:   1000,
			MaxUsesPerUser: 1,
			StartsAt:       &now,
			ExpiresAt:      &expiresAt,
		},
		{
			Code:              "SAVE15PCT",
			DiscountType:      constants.CouponDiscountPercentage,
			DiscountValue:     models.NewMoney("15"),
			MaxDiscountAmount: models.NewMoney("60"),
			MinCartItems:      2,
			ExpiresAt:         &expiresAt,
		},
		{
			Code:          "KEYBOARD20",
			DiscountType:  constants.CouponDiscountFixed,
			DiscountValue: models.NewMoney("20"),
			ScopeRefIDs:   models.UintArray{keyboardID},
			MaxTotalUses:  100,
		},
		{
			Code:          "AUTO5",
			DiscountType:  constants.CouponDiscountPercentage,
			DiscountValue: models.NewMoney("5"),
			MinTotalPrice: models.NewMoney("200"),
			IsAutoApplied: true,
		},
	}
	for i := range coupons {
		if err := models.DB.Where("code = ?", coupons[i].Code).FirstOrCreate(&coupons[i]).Error; err != nil {
			stdLog.Fatalf("Failed to seed coupon %s: %v", coupons[i].Code, err)
		}
	}
	stdLog.Printf("Seeded %d coupons", len(coupons))
}

package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/queue"
	"github.com/cartflow/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type serviceFixture struct {
	db       *gorm.DB
	coupons  *CouponService
	carts    *CartService
	checkout *CheckoutService
}

func setupServiceTest(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(models.AllModels()...), "auto migrate")

	// 单连接保证 sqlite 写事务串行，事务内的所有访问都必须走 tx
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	models.DB = db

	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	usageRepo := repository.NewCouponUsageRepository(db)

	lockOpts := cache.LockOptions{TTL: 5 * time.Second, Wait: 5 * time.Second}
	queueClient, err := queue.NewClient(nil)
	require.NoError(t, err)

	couponSvc := NewCouponService(couponRepo, usageRepo)
	return &serviceFixture{
		db:       db,
		coupons:  couponSvc,
		carts:    NewCartService(cartRepo, productRepo, couponSvc, lockOpts),
		checkout: NewCheckoutService(cartRepo, productRepo, couponRepo, usageRepo, couponSvc, queueClient, lockOpts, 10*time.Second),
	}
}

func (f *serviceFixture) createProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:          name,
		PriceAmount:   models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(product).Error, "create product")
	return product
}

// createCoupon 创建优惠券；is_active 带数据库默认值，零值需要单独写回
func (f *serviceFixture) createCoupon(t *testing.T, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	if coupon.DiscountType == "" {
		coupon.DiscountType = "fixed"
	}
	active := coupon.IsActive
	require.NoError(t, f.db.Create(coupon).Error, "create coupon")
	if !active {
		require.NoError(t, f.db.Model(coupon).Update("is_active", false).Error)
		coupon.IsActive = false
	}
	return coupon
}

func (f *serviceFixture) reloadProduct(t *testing.T, id uint) models.Product {
	t.Helper()
	var product models.Product
	require.NoError(t, f.db.First(&product, id).Error)
	return product
}

func (f *serviceFixture) reloadCoupon(t *testing.T, id uint) models.Coupon {
	t.Helper()
	var coupon models.Coupon
	require.NoError(t, f.db.First(&coupon, id).Error)
	return coupon
}

func money(value string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(value))
}

func timePtr(t time.Time) *time.Time {
	return &t
}

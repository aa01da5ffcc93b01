package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/config"
	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/provider"
	"github.com/cartflow/internal/queue"
	"github.com/cartflow/internal/repository"
	"github.com/cartflow/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	models.DB = db

	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	usageRepo := repository.NewCouponUsageRepository(db)
	couponSvc := service.NewCouponService(couponRepo, usageRepo)
	container := &provider.Container{
		Config:          &config.Config{},
		ProductRepo:     productRepo,
		CartRepo:        cartRepo,
		CouponRepo:      couponRepo,
		CouponUsageRepo: usageRepo,
		CouponService:   couponSvc,
		CartService:     service.NewCartService(cartRepo, productRepo, couponSvc, cache.LockOptions{}),
	}
	return NewConsumer(container), db
}

// seedCartsWithCoupon 为 users 各建一个挂有该优惠券的购物车
func seedCartsWithCoupon(t *testing.T, c *Consumer, db *gorm.DB, code string, users ...uint) *models.Coupon {
	t.Helper()
	product := &models.Product{
		Name:          "mouse",
		PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		StockQuantity: 100,
		IsActive:      true,
	}
	require.NoError(t, db.Create(product).Error)
	coupon := &models.Coupon{
		Code:          code,
		DiscountType:  constants.CouponDiscountFixed,
		DiscountValue: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		MaxTotalUses:  5,
		IsActive:      true,
	}
	require.NoError(t, db.Create(coupon).Error)

	ctx := context.Background()
	for _, userID := range users {
		_, err := c.CartService.AddItem(ctx, service.AddCartItemInput{UserID: userID, ProductID: product.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = c.CartService.ApplyCoupon(ctx, userID, code)
		require.NoError(t, err)
	}
	return coupon
}

func TestHandleCouponExhaustedSweepDetachesFromActiveCarts(t *testing.T) {
	c, db := setupWorkerTest(t)
	coupon := seedCartsWithCoupon(t, c, db, "SWEEP", 1, 2, 3)
	require.NoError(t, db.Model(coupon).Update("current_total_uses", coupon.MaxTotalUses).Error)

	task, err := queue.NewCouponExhaustedSweepTask(queue.CouponExhaustedSweepPayload{CouponID: coupon.ID, Code: coupon.Code})
	require.NoError(t, err)
	require.NoError(t, c.handleCouponExhaustedSweep(context.Background(), task))

	var attached int64
	require.NoError(t, db.Model(&models.CartCoupon{}).Where("coupon_id = ?", coupon.ID).Count(&attached).Error)
	assert.Zero(t, attached)

	// 再次执行为空操作
	removed, err := c.SweepCoupon(context.Background(), coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestHandleCouponExhaustedSweepKeepsEligibleCoupon(t *testing.T) {
	c, db := setupWorkerTest(t)
	coupon := seedCartsWithCoupon(t, c, db, "STILL_OK", 1, 2)

	removed, err := c.SweepCoupon(context.Background(), coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)

	var attached int64
	require.NoError(t, db.Model(&models.CartCoupon{}).Where("coupon_id = ?", coupon.ID).Count(&attached).Error)
	assert.EqualValues(t, 2, attached)
}

func TestHandleCouponExhaustedSweepSkipsInvalidPayload(t *testing.T) {
	c, _ := setupWorkerTest(t)

	require.NoError(t, c.handleCouponExhaustedSweep(context.Background(), nil))
	require.NoError(t, c.handleCouponExhaustedSweep(context.Background(), asynq.NewTask(queue.TaskCouponExhaustedSweep, []byte(`{"coupon_id":0}`))))
	require.Error(t, c.handleCouponExhaustedSweep(context.Background(), asynq.NewTask(queue.TaskCouponExhaustedSweep, []byte(`not-json`))))
}

func TestSweepUnavailableFindsDeactivatedCoupons(t *testing.T) {
	c, db := setupWorkerTest(t)
	inactive := seedCartsWithCoupon(t, c, db, "OFF", 1)
	active := seedCartsWithCoupon(t, c, db, "ON", 2)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	removed, err := c.SweepUnavailable(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var remaining []models.CartCoupon
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, active.ID, remaining[0].CouponID)
}

func TestNewServiceRequiresWork(t *testing.T) {
	c, _ := setupWorkerTest(t)

	_, err := NewService(&config.QueueConfig{Enabled: false}, 0, c)
	require.Error(t, err)

	_, err = NewService(nil, time.Minute, nil)
	require.Error(t, err)

	svc, err := NewService(&config.QueueConfig{Enabled: false}, time.Hour, c)
	require.NoError(t, err)
	assert.Equal(t, "worker", svc.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
	require.NoError(t, svc.Stop(context.Background()))
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/queue"
	"github.com/cartflow/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutResult 结算成功结果
type CheckoutResult struct {
	CartID        uint         `json:"cart_id"`
	CheckoutToken string       `json:"checkout_token"`
	Subtotal      models.Money `json:"subtotal"`
	TotalDiscount models.Money `json:"total_discount"`
	FinalAmount   models.Money `json:"final_amount"`
	ItemCount     int          `json:"item_count"`
	CheckedOutAt  time.Time    `json:"checked_out_at"`
}

// CheckoutService 结算服务
type CheckoutService struct {
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	couponRepo    repository.CouponRepository
	usageRepo     repository.CouponUsageRepository
	couponService *CouponService
	queueClient   *queue.Client
	lockOpts      cache.LockOptions
	timeout       time.Duration
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	usageRepo repository.CouponUsageRepository,
	couponService *CouponService,
	queueClient *queue.Client,
	lockOpts cache.LockOptions,
	timeout time.Duration,
) *CheckoutService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CheckoutService{
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		couponRepo:    couponRepo,
		usageRepo:     usageRepo,
		couponService: couponService,
		queueClient:   queueClient,
		lockOpts:      lockOpts,
		timeout:       timeout,
	}
}

// Checkout 在单个可串行化事务内完成结算
//
// 库存复核与扣减、优惠券复核与计数、写入使用记录、购物车状态切换要么全部生效，要么全部回滚。
func (s *CheckoutService) Checkout(ctx context.Context, userID uint) (*CheckoutResult, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		result    *CheckoutResult
		exhausted []models.Coupon
	)
	err := cache.WithLock(ctx, cache.CartLockKey(userID), s.lockOpts, func() error {
		db := models.DB.WithContext(ctx)
		attempt := 0
		operation := func() error {
			attempt++
			err := db.Transaction(func(tx *gorm.DB) error {
				var err error
				result, exhausted, err = s.checkoutInTx(tx, userID)
				return err
			}, checkoutTxOptions(db))
			if err == nil {
				return nil
			}
			// 序列化冲突整体重跑事务，重新读取后由库存与优惠券复核给出确定结果
			if ctx.Err() == nil && isTransientDBError(err) {
				logger.Ctx(ctx).Debugw("checkout_tx_retry", "user_id", userID, "attempt", attempt, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		return backoff.Retry(operation, checkoutRetryBackOff(ctx))
	})
	if err != nil {
		return nil, classifyCheckoutError(ctx, userID, err)
	}

	logger.Ctx(ctx).Infow("checkout_committed",
		"user_id", userID,
		"cart_id", result.CartID,
		"checkout_token", result.CheckoutToken,
		"final_amount", result.FinalAmount.String(),
	)
	s.publishExhausted(exhausted)
	return result, nil
}

func (s *CheckoutService) checkoutInTx(tx *gorm.DB, userID uint) (*CheckoutResult, []models.Coupon, error) {
	cartRepo := s.cartRepo.WithTx(tx)
	productRepo := s.productRepo.WithTx(tx)
	couponRepo := s.couponRepo.WithTx(tx)
	usageRepo := s.usageRepo.WithTx(tx)
	couponService := s.couponService.WithTx(tx)

	cart, err := cartRepo.GetActiveByUserForUpdate(userID)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil {
		return nil, nil, ErrCartNotFound
	}
	if len(cart.Items) == 0 {
		return nil, nil, ErrCartEmpty
	}

	// 商品按 ID 升序加锁并复核库存
	quantities := make(map[uint]int, len(cart.Items))
	productIDs := make([]uint, 0, len(cart.Items))
	for _, item := range cart.Items {
		if _, ok := quantities[item.ProductID]; !ok {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	products, err := productRepo.ListByIDsForUpdate(productIDs)
	if err != nil {
		return nil, nil, err
	}
	productByID := make(map[uint]models.Product, len(products))
	for _, product := range products {
		productByID[product.ID] = product
	}
	for _, productID := range productIDs {
		product, ok := productByID[productID]
		if !ok || !product.IsActive {
			return nil, nil, ErrProductNotAvailable
		}
		if product.StockQuantity < quantities[productID] {
			return nil, nil, &StockShortageError{
				ProductID:   productID,
				ProductName: product.Name,
				Requested:   quantities[productID],
				Available:   product.StockQuantity,
			}
		}
	}

	// 优惠券按 ID 升序加锁，事务内重新读取后复核并计数
	couponIDs := make([]uint, 0, len(cart.Coupons))
	attachedByCoupon := make(map[uint]models.CartCoupon, len(cart.Coupons))
	for _, cc := range cart.Coupons {
		couponIDs = append(couponIDs, cc.CouponID)
		attachedByCoupon[cc.CouponID] = cc
	}
	sort.Slice(couponIDs, func(i, j int) bool { return couponIDs[i] < couponIDs[j] })
	coupons, err := couponRepo.ListByIDsForUpdate(couponIDs)
	if err != nil {
		return nil, nil, err
	}
	couponByID := make(map[uint]*models.Coupon, len(coupons))
	for i := range coupons {
		couponByID[coupons[i].ID] = &coupons[i]
	}

	var exhausted []models.Coupon
	for _, couponID := range couponIDs {
		attached := attachedByCoupon[couponID]
		coupon := couponByID[couponID]
		code := ""
		if attached.Coupon != nil {
			code = attached.Coupon.Code
		}
		if err := couponService.CheckAvailability(coupon, userID); err != nil {
			if IsCouponEligibilityError(err) {
				return nil, nil, &CouponRejectedError{Code: code, Reason: err}
			}
			return nil, nil, err
		}
		affected, err := couponRepo.IncrementUsage(couponID)
		if err != nil {
			return nil, nil, err
		}
		if affected == 0 {
			return nil, nil, &CouponRejectedError{Code: coupon.Code, Reason: ErrCouponUsageLimit}
		}
		if err := usageRepo.Create(&models.CouponUsage{
			CouponID:       couponID,
			UserID:         userID,
			CartID:         cart.ID,
			DiscountAmount: attached.DiscountAmount,
		}); err != nil {
			return nil, nil, err
		}
		if coupon.HasUsageCap() && coupon.CurrentTotalUses+1 >= coupon.MaxTotalUses {
			exhausted = append(exhausted, *coupon)
		}
	}

	for _, productID := range productIDs {
		affected, err := productRepo.DecrementStock(productID, quantities[productID])
		if err != nil {
			return nil, nil, err
		}
		if affected == 0 {
			product := productByID[productID]
			return nil, nil, &StockShortageError{
				ProductID:   productID,
				ProductName: product.Name,
				Requested:   quantities[productID],
				Available:   product.StockQuantity,
			}
		}
	}

	now := time.Now()
	token := uuid.NewString()
	affected, err := cartRepo.MarkCheckedOut(cart.ID, token, now)
	if err != nil {
		return nil, nil, err
	}
	if affected == 0 {
		return nil, nil, ErrCheckoutConflict
	}
	if err := cartRepo.ClearCoupons(cart.ID); err != nil {
		return nil, nil, err
	}

	totals := computeCartTotals(cart)
	return &CheckoutResult{
		CartID:        cart.ID,
		CheckoutToken: token,
		Subtotal:      models.NewMoneyFromDecimal(models.RoundAmount(totals.subtotal)),
		TotalDiscount: models.NewMoneyFromDecimal(models.RoundAmount(totals.totalDiscount)),
		FinalAmount:   models.NewMoneyFromDecimal(models.RoundAmount(totals.finalAmount())),
		ItemCount:     totals.itemCount,
		CheckedOutAt:  now,
	}, exhausted, nil
}

// publishExhausted 通知后台任务清理仍挂着已用尽优惠券的其他购物车
func (s *CheckoutService) publishExhausted(coupons []models.Coupon) {
	if !s.queueClient.Enabled() {
		return
	}
	for _, coupon := range coupons {
		payload := queue.CouponExhaustedSweepPayload{CouponID: coupon.ID, Code: coupon.Code}
		if err := s.queueClient.EnqueueCouponExhaustedSweep(payload); err != nil {
			logger.Warnw("checkout_enqueue_coupon_sweep_failed", "coupon_id", coupon.ID, "error", err)
		}
	}
}

// checkoutRetryBackOff 事务重试间隔，总时长由结算超时 ctx 约束
func checkoutRetryBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// checkoutTxOptions PostgreSQL 使用 SERIALIZABLE；sqlite 单写者天然串行，使用默认级别
func checkoutTxOptions(db *gorm.DB) *sql.TxOptions {
	if repository.IsPostgres(db) {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return &sql.TxOptions{}
}

func classifyCheckoutError(ctx context.Context, userID uint, err error) error {
	switch {
	case errors.Is(err, ErrCheckoutConflict):
		logger.Ctx(ctx).Warnw("checkout_conflict", "user_id", userID, "error", err)
		return err
	case errors.Is(err, cache.ErrLockTimeout):
		logger.Ctx(ctx).Warnw("checkout_lock_timeout", "user_id", userID)
		return ErrCheckoutTransient
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTransientDBError(err):
		logger.Ctx(ctx).Warnw("checkout_transient_failure", "user_id", userID, "error", err)
		return errors.Join(ErrCheckoutTransient, err)
	default:
		return err
	}
}

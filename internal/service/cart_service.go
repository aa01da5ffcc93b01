package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AddCartItemInput 加入购物车输入
type AddCartItemInput struct {
	UserID    uint
	ProductID uint
	Quantity  int
}

// ApplyCouponResult 手动应用优惠券结果
type ApplyCouponResult struct {
	CouponID       uint         `json:"coupon_id"`
	Code           string       `json:"code"`
	DiscountAmount models.Money `json:"discount_amount"`
	Cart           *CartView    `json:"cart"`
}

// CartService 购物车服务
//
// 同一用户的购物车写操作通过 cache.WithLock 串行化，每次写操作在单个数据库事务内完成。
type CartService struct {
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	couponService *CouponService
	lockOpts      cache.LockOptions
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, couponService *CouponService, lockOpts cache.LockOptions) *CartService {
	return &CartService{
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		couponService: couponService,
		lockOpts:      lockOpts,
	}
}

// GetCart 获取用户当前购物车，不存在时创建
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildCartView(cart, nil), nil
}

// GetOrCreateCart 读取 active 购物车，不存在则创建
//
// 并发创建撞上唯一索引时返回 ErrCartConflict，由调用方重试。
func (s *CartService) GetOrCreateCart(ctx context.Context, userID uint) (*models.Cart, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	return getOrCreateCart(s.cartRepo.WithTx(models.DB.WithContext(ctx)), userID)
}

func getOrCreateCart(cartRepo repository.CartRepository, userID uint) (*models.Cart, error) {
	cart, err := cartRepo.GetActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{UserID: userID, Status: constants.CartStatusActive}
	if err := cartRepo.Create(cart); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCartConflict
		}
		return nil, err
	}
	cart.Items = []models.CartItem{}
	cart.Coupons = []models.CartCoupon{}
	logger.Debugw("cart_created", "cart_id", cart.ID, "user_id", userID)
	return cart, nil
}

// AddItem 加入商品，已存在则累加数量并保留首次加入时的单价
func (s *CartService) AddItem(ctx context.Context, input AddCartItemInput) (*CartView, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidUser
	}
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if input.ProductID == 0 {
		return nil, ErrInvalidProduct
	}

	var view *CartView
	err := s.mutate(ctx, input.UserID, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		product, err := s.productRepo.WithTx(tx).GetByID(input.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductNotFound
		}
		if !product.IsActive {
			return ErrProductNotAvailable
		}

		cart, err := getOrCreateCart(cartRepo, input.UserID)
		if err != nil {
			return err
		}
		existing, err := cartRepo.GetItem(cart.ID, product.ID)
		if err != nil {
			return err
		}
		// 只校验本次加购数量，累计数量由结算时的事务内扣减兜底
		if product.StockQuantity < input.Quantity {
			return ErrInsufficientStock
		}

		if existing != nil {
			err = cartRepo.UpdateItemQuantity(existing.ID, existing.Quantity+input.Quantity)
		} else {
			err = cartRepo.CreateItem(&models.CartItem{
				CartID:          cart.ID,
				ProductID:       product.ID,
				Quantity:        input.Quantity,
				PriceAtAddition: product.PriceAmount,
			})
		}
		if err != nil {
			return err
		}

		view, err = s.reconcile(tx, cart.ID, input.UserID, reconcileOptions{autoApply: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debugw("cart_item_added", "user_id", input.UserID, "product_id", input.ProductID, "quantity", input.Quantity)
	return view, nil
}

// UpdateItem 修改购物车项数量
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var view *CartView
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		item, cart, err := loadOwnedItem(cartRepo, userID, itemID)
		if err != nil {
			return err
		}
		product := item.Product
		if product == nil {
			if product, err = s.productRepo.WithTx(tx).GetByID(item.ProductID); err != nil {
				return err
			}
		}
		if product == nil {
			return ErrProductNotFound
		}
		if quantity > product.StockQuantity {
			return ErrInsufficientStock
		}
		if err := cartRepo.UpdateItemQuantity(item.ID, quantity); err != nil {
			return err
		}
		view, err = s.reconcile(tx, cart.ID, userID, reconcileOptions{revalidate: true, autoApply: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem 删除购物车项
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}

	var view *CartView
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		item, cart, err := loadOwnedItem(cartRepo, userID, itemID)
		if err != nil {
			return err
		}
		if err := cartRepo.DeleteItem(item.ID); err != nil {
			return err
		}
		view, err = s.reconcile(tx, cart.ID, userID, reconcileOptions{revalidate: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyCoupon 手动应用优惠券，资格错误原样返回
func (s *CartService) ApplyCoupon(ctx context.Context, userID uint, code string) (*ApplyCouponResult, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrCouponInvalid
	}

	var result *ApplyCouponResult
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.GetActiveByUser(userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}

		couponService := s.couponService.WithTx(tx)
		coupon, err := couponService.GetByCode(trimmed)
		if err != nil {
			return err
		}
		if coupon != nil {
			for _, cc := range cart.Coupons {
				if cc.CouponID == coupon.ID {
					return ErrCouponAlreadyApplied
				}
			}
		}
		evaluation, err := couponService.Validate(coupon, userID, cart.Items)
		if err != nil {
			return err
		}

		if err := cartRepo.AttachCoupon(&models.CartCoupon{
			CartID:         cart.ID,
			CouponID:       coupon.ID,
			DiscountAmount: models.NewMoneyFromDecimal(evaluation.DiscountAmount),
			IsAutoApplied:  false,
			AppliedAt:      time.Now(),
		}); err != nil {
			if isUniqueViolation(err) {
				return ErrCouponAlreadyApplied
			}
			return err
		}
		if err := cartRepo.Touch(cart.ID); err != nil {
			return err
		}

		refreshed, err := cartRepo.GetByID(cart.ID)
		if err != nil {
			return err
		}
		result = &ApplyCouponResult{
			CouponID:       coupon.ID,
			Code:           coupon.Code,
			DiscountAmount: models.NewMoneyFromDecimal(models.RoundAmount(evaluation.DiscountAmount)),
			Cart:           buildCartView(refreshed, nil),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Infow("cart_coupon_applied", "user_id", userID, "code", result.Code, "discount_amount", result.DiscountAmount.String())
	return result, nil
}

// RemoveCoupon 从购物车移除指定优惠券
func (s *CartService) RemoveCoupon(ctx context.Context, userID uint, code string) (*CartView, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrCouponInvalid
	}

	var view *CartView
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.GetActiveByUser(userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		var target *models.CartCoupon
		for i := range cart.Coupons {
			if cart.Coupons[i].Coupon != nil && cart.Coupons[i].Coupon.Code == trimmed {
				target = &cart.Coupons[i]
				break
			}
		}
		if target == nil {
			return ErrCouponNotApplied
		}
		if err := cartRepo.DetachCoupon(cart.ID, target.CouponID); err != nil {
			return err
		}
		refreshed, err := cartRepo.GetByID(cart.ID)
		if err != nil {
			return err
		}
		view = buildCartView(refreshed, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RevalidateCart 重新校验购物车上的全部优惠券，供后台清理任务调用
func (s *CartService) RevalidateCart(ctx context.Context, cartID uint) ([]RemovedCoupon, error) {
	cart, err := s.cartRepo.WithTx(models.DB.WithContext(ctx)).GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.Status != constants.CartStatusActive {
		return nil, nil
	}

	var removed []RemovedCoupon
	err = s.mutate(ctx, cart.UserID, func(tx *gorm.DB) error {
		view, err := s.reconcile(tx, cart.ID, cart.UserID, reconcileOptions{revalidate: true})
		if errors.Is(err, ErrCartNotActive) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = view.RemovedCoupons
		return nil
	})
	return removed, err
}

// mutate 在用户购物车锁内开启事务执行写操作
func (s *CartService) mutate(ctx context.Context, userID uint, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := cache.WithLock(ctx, cache.CartLockKey(userID), s.lockOpts, func() error {
		return models.DB.WithContext(ctx).Transaction(fn)
	})
	if errors.Is(err, cache.ErrLockTimeout) {
		return ErrCartBusy
	}
	return err
}

func loadOwnedItem(cartRepo repository.CartRepository, userID, itemID uint) (*models.CartItem, *models.Cart, error) {
	if itemID == 0 {
		return nil, nil, ErrCartItemNotFound
	}
	item, err := cartRepo.GetItemByID(itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, ErrCartItemNotFound
	}
	cart, err := cartRepo.GetByID(item.CartID)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil || cart.UserID != userID {
		return nil, nil, ErrCartItemForbidden
	}
	if cart.Status != constants.CartStatusActive {
		return nil, nil, ErrCartNotActive
	}
	return item, cart, nil
}

type reconcileOptions struct {
	revalidate bool
	autoApply  bool
}

// reconcile 购物车内容变化后刷新优惠券
//
// revalidate 为 true 时对每张优惠券重新做完整资格校验，不再满足的优惠券被移除并记录原因；
// 否则只按当前内容重算折扣。autoApply 为 true 时再挂载新满足条件的自动优惠券。
// 单张优惠券的资格问题不会中断整个操作。
func (s *CartService) reconcile(tx *gorm.DB, cartID, userID uint, opts reconcileOptions) (*CartView, error) {
	cartRepo := s.cartRepo.WithTx(tx)
	couponService := s.couponService.WithTx(tx)

	cart, err := cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if cart.Status != constants.CartStatusActive {
		return nil, ErrCartNotActive
	}

	removed := make([]RemovedCoupon, 0)
	attached := make(map[uint]struct{}, len(cart.Coupons))
	for _, cc := range cart.Coupons {
		var (
			discount decimal.Decimal
			reason   error
		)
		switch {
		case cc.Coupon == nil:
			reason = ErrCouponNotFound
		case opts.revalidate:
			evaluation, err := couponService.Validate(cc.Coupon, userID, cart.Items)
			if err != nil && !IsCouponEligibilityError(err) {
				return nil, err
			}
			reason = err
			if evaluation != nil {
				discount = evaluation.DiscountAmount
			}
		default:
			discount = couponService.CalculateDiscount(cc.Coupon, cart.Items)
		}

		if reason != nil {
			if err := cartRepo.DetachCoupon(cart.ID, cc.CouponID); err != nil {
				return nil, err
			}
			entry := RemovedCoupon{CouponID: cc.CouponID, Reason: RemovalReason(reason)}
			if cc.Coupon != nil {
				entry.Code = cc.Coupon.Code
			}
			removed = append(removed, entry)
			logger.Infow("cart_coupon_detached",
				"cart_id", cart.ID,
				"user_id", userID,
				"coupon_id", cc.CouponID,
				"reason", entry.Reason,
			)
			continue
		}

		attached[cc.CouponID] = struct{}{}
		if !discount.Equal(cc.DiscountAmount.Decimal) {
			if err := cartRepo.UpdateCouponDiscount(cc.ID, models.NewMoneyFromDecimal(discount)); err != nil {
				return nil, err
			}
		}
	}

	if opts.autoApply && len(cart.Items) > 0 {
		evaluations, err := couponService.GetEligibleAutoApplyCoupons(userID, cart.Items)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		for _, evaluation := range evaluations {
			if _, ok := attached[evaluation.Coupon.ID]; ok {
				continue
			}
			if err := cartRepo.AttachCoupon(&models.CartCoupon{
				CartID:         cart.ID,
				CouponID:       evaluation.Coupon.ID,
				DiscountAmount: models.NewMoneyFromDecimal(evaluation.DiscountAmount),
				IsAutoApplied:  true,
				AppliedAt:      now,
			}); err != nil {
				return nil, err
			}
			attached[evaluation.Coupon.ID] = struct{}{}
			logger.Debugw("cart_coupon_auto_applied", "cart_id", cart.ID, "coupon_id", evaluation.Coupon.ID)
		}
	}

	if err := cartRepo.Touch(cart.ID); err != nil {
		return nil, err
	}
	refreshed, err := cartRepo.GetByID(cart.ID)
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		removed = nil
	}
	return buildCartView(refreshed, removed), nil
}

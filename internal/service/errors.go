package service

import (
	"errors"
	"fmt"
)

// 参数校验错误（不触达存储即拒绝）
var (
	ErrInvalidUser     = errors.New("invalid user")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrCouponInvalid   = errors.New("coupon code is invalid")
)

// 资源不存在
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCouponNotApplied = errors.New("coupon is not applied to cart")
)

// 越权访问
var (
	ErrCartItemForbidden = errors.New("cart item does not belong to user")
)

// 业务规则拒绝
var (
	ErrProductNotAvailable  = errors.New("product is not available")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrCartNotActive        = errors.New("cart is already checked out")
	ErrCouponAlreadyApplied = errors.New("coupon is already applied")
)

// 优惠券资格错误
var (
	ErrCouponInactive     = errors.New("coupon is inactive")
	ErrCouponNotStarted   = errors.New("coupon is not active yet")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponUsageLimit   = errors.New("coupon usage limit reached")
	ErrCouponPerUserLimit = errors.New("coupon per-user usage limit reached")
	ErrCouponMinItems     = errors.New("cart does not have enough items for coupon")
	ErrCouponMinAmount    = errors.New("cart total does not meet coupon minimum")
	ErrCouponScopeInvalid = errors.New("no cart items are eligible for coupon")
)

// 冲突与瞬时错误（调用方可重试）
var (
	ErrCartConflict      = errors.New("active cart was created concurrently")
	ErrCheckoutConflict  = errors.New("checkout conflict")
	ErrCheckoutTransient = errors.New("checkout temporarily unavailable")
	ErrCartBusy          = errors.New("cart is busy")
)

var couponEligibilityErrors = []error{
	ErrCouponNotFound,
	ErrCouponInactive,
	ErrCouponNotStarted,
	ErrCouponExpired,
	ErrCouponUsageLimit,
	ErrCouponPerUserLimit,
	ErrCouponMinItems,
	ErrCouponMinAmount,
	ErrCouponScopeInvalid,
}

// IsCouponEligibilityError 是否为优惠券资格类错误
func IsCouponEligibilityError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range couponEligibilityErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable 调用方是否可以原样重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCheckoutConflict) ||
		errors.Is(err, ErrCheckoutTransient) ||
		errors.Is(err, ErrCartConflict) ||
		errors.Is(err, ErrCartBusy)
}

// StockShortageError 结算时库存不足
type StockShortageError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

// Is 同时匹配 ErrCheckoutConflict 与 ErrInsufficientStock
func (e *StockShortageError) Is(target error) bool {
	return target == ErrCheckoutConflict || target == ErrInsufficientStock
}

// CouponRejectedError 结算时优惠券复核失败
type CouponRejectedError struct {
	Code   string
	Reason error
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %q rejected at checkout: %v", e.Code, e.Reason)
}

// Is 匹配 ErrCheckoutConflict
func (e *CouponRejectedError) Is(target error) bool {
	return target == ErrCheckoutConflict
}

// Unwrap 暴露具体的资格原因
func (e *CouponRejectedError) Unwrap() error {
	return e.Reason
}

package constants

// 购物车状态常量
const (
	CartStatusActive     = "active"
	CartStatusCheckedOut = "checked_out"
)

// 优惠券折扣类型常量
const (
	CouponDiscountFixed      = "fixed"
	CouponDiscountPercentage = "percentage"
)

// 优惠券移出购物车原因常量
const (
	CouponRemovalInactive     = "inactive"
	CouponRemovalNotStarted   = "not_started"
	CouponRemovalExpired      = "expired"
	CouponRemovalUsageLimit   = "usage_limit_reached"
	CouponRemovalPerUserLimit = "per_user_limit_reached"
	CouponRemovalMinItems     = "min_items_not_met"
	CouponRemovalMinAmount    = "min_amount_not_met"
	CouponRemovalScope        = "no_eligible_products"
	CouponRemovalNotFound     = "not_found"
	CouponRemovalUnknown      = "not_eligible"
)

// 队列常量
const (
	QueueDefault             = "default"
	TaskCouponExhaustedSweep = "coupon:exhausted_sweep"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "cf"
)

// 购物车锁与限流键前缀
const (
	CartLockKeyPrefix      = "cart_lock"
	CheckoutRateLimitScope = "checkout"
)

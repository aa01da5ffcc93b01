package shared

import "fmt"

// messages 接口错误消息表，键与处理器中使用的消息键一致
var messages = map[string]string{
	"error.bad_request":             "invalid request",
	"error.unauthorized":            "unauthorized",
	"error.forbidden":               "forbidden",
	"error.internal":                "internal server error",
	"error.user_id_invalid":         "invalid user id",
	"error.user_id_type_invalid":    "user id has an unexpected type",
	"error.auth_header_missing":     "authorization header is missing",
	"error.auth_header_invalid":     "authorization header must be a bearer token",
	"error.jwt_secret_missing":      "token verification is not configured",
	"error.token_invalid":           "token is invalid or expired",
	"error.rate_limited":            "too many requests, retry in %d seconds",
	"error.checkout_too_many":       "too many checkout attempts, retry in %d seconds",
	"error.rate_limit_unavailable":  "rate limiter unavailable",
	"error.quantity_invalid":        "quantity must be greater than zero",
	"error.product_invalid":         "invalid product",
	"error.product_not_found":       "product not found",
	"error.product_not_available":   "product is not available",
	"error.stock_insufficient":      "insufficient stock",
	"error.cart_not_found":          "cart not found",
	"error.cart_empty":              "cart is empty",
	"error.cart_item_invalid":       "invalid cart item",
	"error.cart_item_not_found":     "cart item not found",
	"error.cart_item_forbidden":     "cart item does not belong to you",
	"error.cart_not_active":         "cart is already checked out",
	"error.cart_conflict":           "cart was modified concurrently, please retry",
	"error.cart_busy":               "cart is busy, please retry",
	"error.cart_fetch_failed":       "failed to load cart",
	"error.cart_update_failed":      "failed to update cart",
	"error.coupon_invalid":          "coupon code is invalid",
	"error.coupon_not_found":        "coupon not found",
	"error.coupon_not_applied":      "coupon is not applied to cart",
	"error.coupon_already_applied":  "coupon is already applied",
	"error.coupon_inactive":         "coupon is inactive",
	"error.coupon_not_started":      "coupon is not active yet",
	"error.coupon_expired":          "coupon has expired",
	"error.coupon_usage_limit":      "coupon usage limit reached",
	"error.coupon_per_user_limit":   "you have already used this coupon",
	"error.coupon_min_items":        "cart does not have enough items for this coupon",
	"error.coupon_min_amount":       "cart total does not meet the coupon minimum",
	"error.coupon_scope_invalid":    "no items in cart are eligible for this coupon",
	"error.coupon_usage_fetch":      "failed to load coupon usages",
	"error.checkout_conflict":       "checkout conflicted with another order, please review your cart",
	"error.checkout_coupon_invalid": "a coupon in your cart can no longer be used",
	"error.checkout_unavailable":    "checkout is temporarily unavailable, please retry",
	"error.checkout_failed":         "checkout failed",
	"error.service_unhealthy":       "service unhealthy",
}

// Message 获取消息键对应的文本，未知键原样返回
func Message(key string, args ...interface{}) string {
	msg, ok := messages[key]
	if !ok {
		msg = key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

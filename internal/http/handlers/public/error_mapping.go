package public

import (
	"errors"

	"github.com/cartflow/internal/http/response"
	"github.com/cartflow/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var cartCommonErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidUser, code: response.CodeBadRequest, key: "error.user_id_invalid"},
	{target: service.ErrCartNotFound, code: response.CodeNotFound, key: "error.cart_not_found"},
	{target: service.ErrCartNotActive, code: response.CodeConflict, key: "error.cart_not_active"},
	{target: service.ErrCartConflict, code: response.CodeConflict, key: "error.cart_conflict"},
	{target: service.ErrCartBusy, code: response.CodeServiceUnavailable, key: "error.cart_busy"},
}

var cartItemErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, key: "error.quantity_invalid"},
	{target: service.ErrInvalidProduct, code: response.CodeBadRequest, key: "error.product_invalid"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, key: "error.product_not_found"},
	{target: service.ErrProductNotAvailable, code: response.CodeBadRequest, key: "error.product_not_available"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, key: "error.stock_insufficient"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, key: "error.cart_item_not_found"},
	{target: service.ErrCartItemForbidden, code: response.CodeForbidden, key: "error.cart_item_forbidden"},
}

var couponEligibilityErrorRules = []mappedHandlerError{
	{target: service.ErrCouponNotFound, code: response.CodeNotFound, key: "error.coupon_not_found"},
	{target: service.ErrCouponInactive, code: response.CodeBadRequest, key: "error.coupon_inactive"},
	{target: service.ErrCouponNotStarted, code: response.CodeBadRequest, key: "error.coupon_not_started"},
	{target: service.ErrCouponExpired, code: response.CodeBadRequest, key: "error.coupon_expired"},
	{target: service.ErrCouponUsageLimit, code: response.CodeBadRequest, key: "error.coupon_usage_limit"},
	{target: service.ErrCouponPerUserLimit, code: response.CodeBadRequest, key: "error.coupon_per_user_limit"},
	{target: service.ErrCouponMinItems, code: response.CodeBadRequest, key: "error.coupon_min_items"},
	{target: service.ErrCouponMinAmount, code: response.CodeBadRequest, key: "error.coupon_min_amount"},
	{target: service.ErrCouponScopeInvalid, code: response.CodeBadRequest, key: "error.coupon_scope_invalid"},
}

var couponApplyErrorRules = []mappedHandlerError{
	{target: service.ErrCouponInvalid, code: response.CodeBadRequest, key: "error.coupon_invalid"},
	{target: service.ErrCouponAlreadyApplied, code: response.CodeConflict, key: "error.coupon_already_applied"},
	{target: service.ErrCouponNotApplied, code: response.CodeNotFound, key: "error.coupon_not_applied"},
}

// 顺序敏感：库存与优惠券冲突需要先于通用 ErrCheckoutConflict 匹配
var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCartEmpty, code: response.CodeNotFound, key: "error.cart_empty"},
	{target: service.ErrProductNotAvailable, code: response.CodeConflict, key: "error.product_not_available"},
	{target: service.ErrCheckoutConflict, code: response.CodeConflict, key: "error.checkout_conflict"},
	{target: service.ErrCheckoutTransient, code: response.CodeServiceUnavailable, key: "error.checkout_unavailable"},
}

func respondCartError(c *gin.Context, err error, fallbackKey string) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(cartCommonErrorRules, cartItemErrorRules), response.CodeInternal, fallbackKey)
}

func respondCouponError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(couponApplyErrorRules, couponEligibilityErrorRules, cartCommonErrorRules), response.CodeInternal, "error.cart_update_failed")
}

// respondCheckoutError 冲突类错误附带可供客户端展示的详情
func respondCheckoutError(c *gin.Context, err error) {
	var shortage *service.StockShortageError
	if errors.As(err, &shortage) {
		respondErrorWithData(c, response.CodeConflict, "error.stock_insufficient", gin.H{
			"product_id":   shortage.ProductID,
			"product_name": shortage.ProductName,
			"requested":    shortage.Requested,
			"available":    shortage.Available,
			"retryable":    service.IsRetryable(err),
		}, nil)
		return
	}
	var rejected *service.CouponRejectedError
	if errors.As(err, &rejected) {
		respondErrorWithData(c, response.CodeConflict, "error.checkout_coupon_invalid", gin.H{
			"code":      rejected.Code,
			"reason":    service.RemovalReason(rejected.Reason),
			"retryable": service.IsRetryable(err),
		}, nil)
		return
	}
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutErrorRules, cartCommonErrorRules), response.CodeInternal, "error.checkout_failed")
}

package public

import (
	"strconv"
	"strings"

	handlershared "github.com/cartflow/internal/http/handlers/shared"
	"github.com/cartflow/internal/http/response"
	"github.com/cartflow/internal/service"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest 加入购物车请求
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// UpdateCartItemRequest 修改数量请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyCouponRequest 应用优惠券请求
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	view, err := h.CartService.GetCart(c.Request.Context(), uid)
	if err != nil {
		respondCartError(c, err, "error.cart_fetch_failed")
		return
	}
	response.Success(c, view)
}

// AddCartItem 加入商品
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	view, err := h.CartService.AddItem(c.Request.Context(), service.AddCartItemInput{
		UserID:    uid,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	response.Success(c, view)
}

// UpdateCartItem 修改购物车项数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseItemID(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	view, err := h.CartService.UpdateItem(c.Request.Context(), uid, itemID, req.Quantity)
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	response.Success(c, view)
}

// DeleteCartItem 删除购物车项
func (h *Handler) DeleteCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseItemID(c)
	if !ok {
		return
	}
	view, err := h.CartService.RemoveItem(c.Request.Context(), uid, itemID)
	if err != nil {
		respondCartError(c, err, "error.cart_update_failed")
		return
	}
	response.Success(c, view)
}

// ApplyCoupon 手动应用优惠券
func (h *Handler) ApplyCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.coupon_invalid", nil)
		return
	}
	result, err := h.CartService.ApplyCoupon(c.Request.Context(), uid, req.Code)
	if err != nil {
		respondCouponError(c, err)
		return
	}
	response.Success(c, result)
}

// RemoveCoupon 移除优惠券
func (h *Handler) RemoveCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	code := strings.TrimSpace(c.Param("code"))
	view, err := h.CartService.RemoveCoupon(c.Request.Context(), uid, code)
	if err != nil {
		respondCouponError(c, err)
		return
	}
	response.Success(c, view)
}

// Checkout 结算
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	result, err := h.CheckoutService.Checkout(c.Request.Context(), uid)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	requestLog(c).Infow("checkout_success",
		"cart_id", result.CartID,
		"checkout_token", result.CheckoutToken,
	)
	response.Success(c, result)
}

// ListCouponUsages 用户优惠券使用记录
func (h *Handler) ListCouponUsages(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)

	usages, total, err := h.CouponService.ListUserUsages(uid, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.coupon_usage_fetch", err)
		return
	}
	response.SuccessWithPage(c, usages, response.NewPagination(page, pageSize, total))
}

func parseItemID(c *gin.Context) (uint, bool) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || itemID == 0 {
		respondError(c, response.CodeBadRequest, "error.cart_item_invalid", nil)
		return 0, false
	}
	return uint(itemID), true
}

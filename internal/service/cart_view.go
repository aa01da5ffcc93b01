package service

import (
	"time"

	"github.com/cartflow/internal/models"

	"github.com/shopspring/decimal"
)

// CartItemView 购物车项（用于响应）
type CartItemView struct {
	ID          uint         `json:"id"`
	ProductID   uint         `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   models.Money `json:"unit_price"`
	LineTotal   models.Money `json:"line_total"`
}

// AppliedCouponView 已应用优惠券（用于响应）
type AppliedCouponView struct {
	CouponID       uint         `json:"coupon_id"`
	Code           string       `json:"code"`
	DiscountType   string       `json:"discount_type"`
	DiscountAmount models.Money `json:"discount_amount"`
	IsAutoApplied  bool         `json:"is_auto_applied"`
	AppliedAt      time.Time    `json:"applied_at"`
}

// RemovedCoupon 本次操作中被移出购物车的优惠券
type RemovedCoupon struct {
	CouponID uint   `json:"coupon_id"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// CartSummary 购物车汇总
type CartSummary struct {
	Subtotal      models.Money `json:"subtotal"`
	TotalDiscount models.Money `json:"total_discount"`
	FinalAmount   models.Money `json:"final_amount"`
	ItemCount     int          `json:"item_count"`
}

// CartView 购物车视图
type CartView struct {
	ID             uint                `json:"id"`
	UserID         uint                `json:"user_id"`
	Status         string              `json:"status"`
	Items          []CartItemView      `json:"items"`
	AppliedCoupons []AppliedCouponView `json:"applied_coupons"`
	RemovedCoupons []RemovedCoupon     `json:"removed_coupons,omitempty"`
	Summary        CartSummary         `json:"summary"`
}

// cartTotals 完整精度的购物车合计
type cartTotals struct {
	subtotal      decimal.Decimal
	totalDiscount decimal.Decimal
	itemCount     int
}

func (t cartTotals) finalAmount() decimal.Decimal {
	final := t.subtotal.Sub(t.totalDiscount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

func computeCartTotals(cart *models.Cart) cartTotals {
	totals := cartTotals{subtotal: decimal.Zero, totalDiscount: decimal.Zero}
	if cart == nil {
		return totals
	}
	for _, item := range cart.Items {
		totals.subtotal = totals.subtotal.Add(item.LineTotal())
		totals.itemCount += item.Quantity
	}
	for _, cc := range cart.Coupons {
		totals.totalDiscount = totals.totalDiscount.Add(cc.DiscountAmount.Decimal)
	}
	return totals
}

// buildCartView 组装响应，金额仅在此处统一舍入
func buildCartView(cart *models.Cart, removed []RemovedCoupon) *CartView {
	view := &CartView{
		Items:          make([]CartItemView, 0),
		AppliedCoupons: make([]AppliedCouponView, 0),
		RemovedCoupons: removed,
	}
	if cart == nil {
		return view
	}
	view.ID = cart.ID
	view.UserID = cart.UserID
	view.Status = cart.Status

	for _, item := range cart.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		view.Items = append(view.Items, CartItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.PriceAtAddition.Rounded(),
			LineTotal:   models.NewMoneyFromDecimal(models.RoundAmount(item.LineTotal())),
		})
	}
	for _, cc := range cart.Coupons {
		applied := AppliedCouponView{
			CouponID:       cc.CouponID,
			DiscountAmount: cc.DiscountAmount.Rounded(),
			IsAutoApplied:  cc.IsAutoApplied,
			AppliedAt:      cc.AppliedAt,
		}
		if cc.Coupon != nil {
			applied.Code = cc.Coupon.Code
			applied.DiscountType = cc.Coupon.DiscountType
		}
		view.AppliedCoupons = append(view.AppliedCoupons, applied)
	}

	totals := computeCartTotals(cart)
	view.Summary = CartSummary{
		Subtotal:      models.NewMoneyFromDecimal(models.RoundAmount(totals.subtotal)),
		TotalDiscount: models.NewMoneyFromDecimal(models.RoundAmount(totals.totalDiscount)),
		FinalAmount:   models.NewMoneyFromDecimal(models.RoundAmount(totals.finalAmount())),
		ItemCount:     totals.itemCount,
	}
	return view
}

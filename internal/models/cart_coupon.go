package models

import (
	"time"
)

// CartCoupon 购物车已应用的优惠券
type CartCoupon struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	CartID         uint      `gorm:"not null;uniqueIndex:idx_cart_coupons_cart_coupon" json:"cart_id"`         // 购物车ID
	CouponID       uint      `gorm:"not null;uniqueIndex:idx_cart_coupons_cart_coupon;index" json:"coupon_id"` // 优惠券ID
	DiscountAmount Money     `gorm:"type:decimal(20,6);not null;default:0" json:"discount_amount"`             // 当前优惠金额
	IsAutoApplied  bool      `gorm:"not null;default:false" json:"is_auto_applied"`                            // 是否自动应用
	AppliedAt      time.Time `gorm:"not null" json:"applied_at"`                                               // 应用时间

	Coupon *Coupon `gorm:"foreignKey:CouponID" json:"coupon,omitempty"` // 关联优惠券
}

// TableName 指定表名
func (CartCoupon) TableName() string {
	return "cart_coupons"
}

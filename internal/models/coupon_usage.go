package models

import (
	"time"
)

// CouponUsage 优惠券使用记录（结算成功后写入，不可修改）
type CouponUsage struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                              // 主键
	CouponID       uint      `gorm:"index:idx_coupon_usages_coupon_user;not null" json:"coupon_id"`     // 优惠券ID
	UserID         uint      `gorm:"index:idx_coupon_usages_coupon_user;index;not null" json:"user_id"` // 用户ID
	CartID         uint      `gorm:"index;not null" json:"cart_id"`                                     // 结算的购物车ID
	DiscountAmount Money     `gorm:"type:decimal(20,6);not null;default:0" json:"discount_amount"`      // 优惠金额
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                           // 创建时间

	Coupon *Coupon `gorm:"foreignKey:CouponID" json:"coupon,omitempty"` // 关联优惠券
}

// TableName 指定表名
func (CouponUsage) TableName() string {
	return "coupon_usages"
}

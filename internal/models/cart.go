package models

import (
	"time"
)

// Cart 购物车
//
// 每个用户同一时间最多只有一个 active 购物车（部分唯一索引），已结算的购物车保留为历史记录。
type Cart struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                                                    // 主键
	UserID        uint       `gorm:"not null;index;uniqueIndex:idx_carts_user_active,where:status = 'active'" json:"user_id"` // 用户ID
	Status        string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`                          // 状态（active/checked_out）
	CheckoutToken string     `gorm:"type:varchar(64);index" json:"checkout_token,omitempty"`                                  // 结算凭证
	CheckedOutAt  *time.Time `json:"checked_out_at,omitempty"`                                                                // 结算时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                                                 // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                                                              // 更新时间

	Items   []CartItem   `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`   // 购物车项
	Coupons []CartCoupon `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"coupons,omitempty"` // 已应用优惠券
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UintArray 无符号整数数组，以 JSON 文本落库
type UintArray []uint

// Value 实现 driver.Valuer 接口
func (a UintArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (a *UintArray) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = UintArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported UintArray source: %T", value)
	}
	if len(raw) == 0 {
		*a = UintArray{}
		return nil
	}
	return json.Unmarshal(raw, a)
}

// Contains 是否包含指定 ID
func (a UintArray) Contains(id uint) bool {
	for _, item := range a {
		if item == id {
			return true
		}
	}
	return false
}

// Coupon 优惠券
type Coupon struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                             // 主键
	Code              string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`                // 优惠码
	DiscountType      string     `gorm:"type:varchar(20);not null" json:"discount_type"`                   // 折扣类型（fixed/percentage）
	DiscountValue     Money      `gorm:"type:decimal(20,6);not null" json:"discount_value"`                // 数值（固定金额或百分比）
	MaxDiscountAmount Money      `gorm:"type:decimal(20,6);not null;default:0" json:"max_discount_amount"` // 最大优惠金额（0 表示不封顶）
	ScopeRefIDs       UintArray  `gorm:"type:text" json:"scope_ref_ids"`                                   // 适用商品ID集合（空表示不限制）
	StartsAt          *time.Time `gorm:"index" json:"starts_at"`                                           // 生效时间
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at"`                                          // 失效时间
	MinCartItems      int        `gorm:"not null;default:0" json:"min_cart_items"`                         // 最少件数
	MinTotalPrice     Money      `gorm:"type:decimal(20,6);not null;default:0" json:"min_total_price"`     // 适用商品金额门槛
	MaxTotalUses      int        `gorm:"not null;default:0" json:"max_total_uses"`                         // 总使用上限（0 表示不限制）
	MaxUsesPerUser    int        `gorm:"not null;default:0" json:"max_uses_per_user"`                      // 每人使用上限（0 表示不限制）
	CurrentTotalUses  int        `gorm:"not null;default:0" json:"current_total_uses"`                     // 已使用次数
	IsAutoApplied     bool       `gorm:"not null;default:false;index" json:"is_auto_applied"`              // 是否自动应用
	IsActive          bool       `gorm:"not null;default:true;index" json:"is_active"`                     // 是否启用
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                                       // 更新时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}

// HasUsageCap 是否设置了总使用上限
func (c Coupon) HasUsageCap() bool {
	return c.MaxTotalUses > 0
}

// IsExhausted 是否已达到总使用上限
func (c Coupon) IsExhausted() bool {
	return c.HasUsageCap() && c.CurrentTotalUses >= c.MaxTotalUses
}

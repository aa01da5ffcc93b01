package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem 购物车项
type CartItem struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	CartID          uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`          // 购物车ID
	ProductID       uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"product_id"` // 商品ID
	Quantity        int       `gorm:"not null" json:"quantity"`                                                 // 数量
	PriceAtAddition Money     `gorm:"type:decimal(20,6);not null" json:"price_at_addition"`                     // 首次加入时的单价快照
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt       time.Time `json:"updated_at"`                                                               // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal 行小计（快照单价 × 数量）
func (i CartItem) LineTotal() decimal.Decimal {
	return i.PriceAtAddition.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

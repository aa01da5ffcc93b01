package models

import (
	"time"
)

// Product 商品表（购物车只读取，结算时扣减库存）
type Product struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                      // 主键
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`                    // 名称
	PriceAmount   Money     `gorm:"type:decimal(20,6);not null;default:0" json:"price_amount"` // 价格金额
	StockQuantity int       `gorm:"not null;default:0" json:"stock_quantity"`                  // 库存数量
	IsActive      bool      `gorm:"default:true;index" json:"is_active"`                       // 是否上架
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

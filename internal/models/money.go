package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AmountScale 对外展示金额的小数位数
const AmountScale int32 = 2

// Money 统一金额类型
//
// 内部计算与落库保持完整精度，仅在对外输出（JSON、String）时按 AmountScale 舍入。
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount}
}

// NewMoney 从字符串创建金额，解析失败时返回 0
func NewMoney(value string) Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{Decimal: decimal.Zero}
	}
	return Money{Decimal: d}
}

// RoundAmount 统一的对外舍入规则（四舍五入到分）
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(AmountScale)
}

// Rounded 返回舍入后的金额
func (m Money) Rounded() Money {
	return Money{Decimal: RoundAmount(m.Decimal)}
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(RoundAmount(m.Decimal).StringFixed(AmountScale))
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	return m.Decimal.Scan(value)
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return RoundAmount(m.Decimal).StringFixed(AmountScale)
}

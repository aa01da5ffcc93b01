package repository

import (
	"errors"
	"time"

	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.Cart, error)
	GetActiveByUser(userID uint) (*models.Cart, error)
	GetActiveByUserForUpdate(userID uint) (*models.Cart, error)
	Create(cart *models.Cart) error
	Touch(cartID uint) error
	MarkCheckedOut(cartID uint, token string, at time.Time) (int64, error)
	ListActiveIDsByCoupon(couponID uint) ([]uint, error)

	GetItemByID(id uint) (*models.CartItem, error)
	GetItem(cartID, productID uint) (*models.CartItem, error)
	CreateItem(item *models.CartItem) error
	UpdateItemQuantity(itemID uint, quantity int) error
	DeleteItem(itemID uint) error

	AttachCoupon(cc *models.CartCoupon) error
	UpdateCouponDiscount(id uint, amount models.Money) error
	DetachCoupon(cartID, couponID uint) error
	ClearCoupons(cartID uint) error

	WithTx(tx *gorm.DB) CartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

func (r *GormCartRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product").
		Preload("Coupons", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Coupons.Coupon")
}

func firstCart(query *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := query.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetByID 根据 ID 获取购物车（含购物车项与优惠券）
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	return firstCart(r.withAssociations(r.db).Where("id = ?", id))
}

// GetActiveByUser 获取用户当前的 active 购物车
func (r *GormCartRepository) GetActiveByUser(userID uint) (*models.Cart, error) {
	return firstCart(r.withAssociations(r.db).
		Where("user_id = ? AND status = ?", userID, constants.CartStatusActive))
}

// GetActiveByUserForUpdate 加锁获取用户 active 购物车
func (r *GormCartRepository) GetActiveByUserForUpdate(userID uint) (*models.Cart, error) {
	return firstCart(r.withAssociations(r.db.Clauses(clause.Locking{Strength: "UPDATE"})).
		Where("user_id = ? AND status = ?", userID, constants.CartStatusActive))
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	return r.db.Create(cart).Error
}

// Touch 刷新购物车更新时间
func (r *GormCartRepository) Touch(cartID uint) error {
	return r.db.Model(&models.Cart{}).Where("id = ?", cartID).UpdateColumn("updated_at", time.Now()).Error
}

// MarkCheckedOut 仅当购物车仍为 active 时标记为已结算
func (r *GormCartRepository) MarkCheckedOut(cartID uint, token string, at time.Time) (int64, error) {
	result := r.db.Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, constants.CartStatusActive).
		UpdateColumns(map[string]interface{}{
			"status":         constants.CartStatusCheckedOut,
			"checkout_token": token,
			"checked_out_at": at,
			"updated_at":     at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListActiveIDsByCoupon 查询仍挂载指定优惠券的 active 购物车
func (r *GormCartRepository) ListActiveIDsByCoupon(couponID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.CartCoupon{}).
		Joins("JOIN carts ON carts.id = cart_coupons.cart_id").
		Where("cart_coupons.coupon_id = ? AND carts.status = ?", couponID, constants.CartStatusActive).
		Order("cart_coupons.cart_id asc").
		Pluck("cart_coupons.cart_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// GetItemByID 根据 ID 获取购物车项
func (r *GormCartRepository) GetItemByID(id uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Preload("Product").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetItem 获取购物车中指定商品的行
func (r *GormCartRepository) GetItem(cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItem 新增购物车项
func (r *GormCartRepository) CreateItem(item *models.CartItem) error {
	return r.db.Create(item).Error
}

// UpdateItemQuantity 更新购物车项数量
func (r *GormCartRepository) UpdateItemQuantity(itemID uint, quantity int) error {
	return r.db.Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumns(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now(),
		}).Error
}

// DeleteItem 删除购物车项
func (r *GormCartRepository) DeleteItem(itemID uint) error {
	return r.db.Delete(&models.CartItem{}, itemID).Error
}

// AttachCoupon 为购物车挂载优惠券
func (r *GormCartRepository) AttachCoupon(cc *models.CartCoupon) error {
	return r.db.Create(cc).Error
}

// UpdateCouponDiscount 更新购物车优惠券当前优惠金额
func (r *GormCartRepository) UpdateCouponDiscount(id uint, amount models.Money) error {
	return r.db.Model(&models.CartCoupon{}).Where("id = ?", id).UpdateColumn("discount_amount", amount).Error
}

// DetachCoupon 从购物车移除优惠券
func (r *GormCartRepository) DetachCoupon(cartID, couponID uint) error {
	return r.db.Where("cart_id = ? AND coupon_id = ?", cartID, couponID).Delete(&models.CartCoupon{}).Error
}

// ClearCoupons 清空购物车优惠券
func (r *GormCartRepository) ClearCoupons(cartID uint) error {
	return r.db.Where("cart_id = ?", cartID).Delete(&models.CartCoupon{}).Error
}

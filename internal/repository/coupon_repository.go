package repository

import (
	"errors"
	"time"

	"github.com/cartflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	ListByIDsForUpdate(ids []uint) ([]models.Coupon, error)
	ListAutoApplyCandidates(now time.Time) ([]models.Coupon, error)
	ListUnavailableAttached(now time.Time) ([]models.Coupon, error)
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	IncrementUsage(id uint) (int64, error)
	WithTx(tx *gorm.DB) CouponRepository
}

// GormCouponRepository GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓库
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) CouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// GetByID 根据ID获取优惠券
func (r *GormCouponRepository) GetByID(id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByCode 根据优惠码获取优惠券
func (r *GormCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// ListByIDsForUpdate 按 ID 升序加锁读取优惠券
func (r *GormCouponRepository) ListByIDsForUpdate(ids []uint) ([]models.Coupon, error) {
	if len(ids) == 0 {
		return []models.Coupon{}, nil
	}
	var coupons []models.Coupon
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// ListAutoApplyCandidates 获取处于有效期内的自动应用优惠券，按创建时间先后排序
func (r *GormCouponRepository) ListAutoApplyCandidates(now time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.
		Where("is_active = ? AND is_auto_applied = ?", true, true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Where("max_total_uses = 0 OR current_total_uses < max_total_uses").
		Order("created_at asc, id asc").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// ListUnavailableAttached 查询仍挂在 active 购物车上、但已停用、过期或用尽的优惠券
func (r *GormCouponRepository) ListUnavailableAttached(now time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.Model(&models.Coupon{}).
		Where("id IN (?)", r.db.Table("cart_coupons").
			Select("cart_coupons.coupon_id").
			Joins("JOIN carts ON carts.id = cart_coupons.cart_id").
			Where("carts.status = ?", "active")).
		Where("is_active = ? OR expires_at < ? OR (max_total_uses > 0 AND current_total_uses >= max_total_uses)", false, now).
		Order("id asc").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// Create 创建优惠券
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

// Update 更新优惠券
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// IncrementUsage 条件递增使用次数，达到上限时影响行数为 0
func (r *GormCouponRepository) IncrementUsage(id uint) (int64, error) {
	result := r.db.Model(&models.Coupon{}).
		Where("id = ?", id).
		Where("max_total_uses = 0 OR current_total_uses < max_total_uses").
		UpdateColumn("current_total_uses", gorm.Expr("current_total_uses + ?", 1))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

package repository

import (
	"github.com/cartflow/internal/models"

	"gorm.io/gorm"
)

// CouponUsageListFilter 使用记录列表过滤条件，CouponID 为 0 时不限优惠券
type CouponUsageListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	CouponID uint
}

// CouponUsageRepository 优惠券使用记录数据访问接口
type CouponUsageRepository interface {
	Create(usage *models.CouponUsage) error
	CountByUser(couponID, userID uint) (int64, error)
	ListByUser(filter CouponUsageListFilter) ([]models.CouponUsage, int64, error)
	WithTx(tx *gorm.DB) CouponUsageRepository
}

// GormCouponUsageRepository GORM 实现
type GormCouponUsageRepository struct {
	db *gorm.DB
}

// NewCouponUsageRepository 创建优惠券使用记录仓库
func NewCouponUsageRepository(db *gorm.DB) *GormCouponUsageRepository {
	return &GormCouponUsageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponUsageRepository) WithTx(tx *gorm.DB) CouponUsageRepository {
	if tx == nil {
		return r
	}
	return &GormCouponUsageRepository{db: tx}
}

// Create 写入使用记录，记录一经写入不再修改
func (r *GormCouponUsageRepository) Create(usage *models.CouponUsage) error {
	return r.db.Omit("Coupon").Create(usage).Error
}

// CountByUser 统计用户对某张优惠券的已结算次数
func (r *GormCouponUsageRepository) CountByUser(couponID, userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}

// ListByUser 分页查询用户使用记录，按时间倒序并带出优惠券
func (r *GormCouponUsageRepository) ListByUser(filter CouponUsageListFilter) ([]models.CouponUsage, int64, error) {
	query := r.db.Model(&models.CouponUsage{}).Where("user_id = ?", filter.UserID)
	if filter.CouponID > 0 {
		query = query.Where("coupon_id = ?", filter.CouponID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.CouponUsage{}, 0, nil
	}

	var usages []models.CouponUsage
	err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Preload("Coupon").
		Order("created_at desc, id desc").
		Find(&usages).Error
	if err != nil {
		return nil, 0, err
	}
	return usages, total, nil
}

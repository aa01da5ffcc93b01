package service

import (
	"errors"
	"strings"
	"time"

	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CouponEvaluation 单张优惠券针对购物车快照的评估结果
type CouponEvaluation struct {
	Coupon           *models.Coupon
	EligibleSubtotal decimal.Decimal
	DiscountAmount   decimal.Decimal
}

// CouponService 优惠券资格与折扣计算服务
type CouponService struct {
	couponRepo repository.CouponRepository
	usageRepo  repository.CouponUsageRepository
	now        func() time.Time
}

// NewCouponService 创建优惠券服务
func NewCouponService(couponRepo repository.CouponRepository, usageRepo repository.CouponUsageRepository) *CouponService {
	return &CouponService{
		couponRepo: couponRepo,
		usageRepo:  usageRepo,
		now:        time.Now,
	}
}

// WithTx 返回绑定事务的副本，资格校验在事务内读取最新数据
func (s *CouponService) WithTx(tx *gorm.DB) *CouponService {
	if tx == nil {
		return s
	}
	return &CouponService{
		couponRepo: s.couponRepo.WithTx(tx),
		usageRepo:  s.usageRepo.WithTx(tx),
		now:        s.now,
	}
}

// GetByCode 按优惠码查询，不存在时返回 nil
func (s *CouponService) GetByCode(code string) (*models.Coupon, error) {
	return s.couponRepo.GetByCode(strings.TrimSpace(code))
}

// ValidateCode 按优惠码加载并校验
func (s *CouponService) ValidateCode(code string, userID uint, items []models.CartItem) (*CouponEvaluation, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrCouponInvalid
	}
	coupon, err := s.couponRepo.GetByCode(trimmed)
	if err != nil {
		return nil, err
	}
	return s.Validate(coupon, userID, items)
}

// Validate 按固定顺序校验优惠券资格，遇到第一个不满足的条件即返回
func (s *CouponService) Validate(coupon *models.Coupon, userID uint, items []models.CartItem) (*CouponEvaluation, error) {
	if err := s.CheckAvailability(coupon, userID); err != nil {
		return nil, err
	}

	if coupon.MinCartItems > 0 && countQuantity(items) < coupon.MinCartItems {
		return nil, ErrCouponMinItems
	}

	eligibleSubtotal, matched := eligibleSubtotal(coupon, items)
	if eligibleSubtotal.LessThan(coupon.MinTotalPrice.Decimal) {
		return nil, ErrCouponMinAmount
	}
	if len(coupon.ScopeRefIDs) > 0 && !matched {
		return nil, ErrCouponScopeInvalid
	}

	return &CouponEvaluation{
		Coupon:           coupon,
		EligibleSubtotal: eligibleSubtotal,
		DiscountAmount:   computeDiscount(coupon, eligibleSubtotal),
	}, nil
}

// CheckAvailability 校验与购物车内容无关的条件：启用状态、有效期、总量与每人上限
func (s *CouponService) CheckAvailability(coupon *models.Coupon, userID uint) error {
	if coupon == nil {
		return ErrCouponNotFound
	}
	if !coupon.IsActive {
		return ErrCouponInactive
	}

	now := s.now()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return ErrCouponNotStarted
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return ErrCouponExpired
	}

	if coupon.IsExhausted() {
		return ErrCouponUsageLimit
	}

	if coupon.MaxUsesPerUser > 0 && userID != 0 {
		count, err := s.usageRepo.CountByUser(coupon.ID, userID)
		if err != nil {
			return err
		}
		if int(count) >= coupon.MaxUsesPerUser {
			return ErrCouponPerUserLimit
		}
	}
	return nil
}

// CalculateDiscount 仅按当前购物车内容重新计算折扣，不做资格校验
func (s *CouponService) CalculateDiscount(coupon *models.Coupon, items []models.CartItem) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	subtotal, _ := eligibleSubtotal(coupon, items)
	return computeDiscount(coupon, subtotal)
}

// GetEligibleAutoApplyCoupons 扫描可自动应用的优惠券
//
// 候选按 created_at、id 升序返回，校验失败的优惠券只记录 debug 日志后跳过。
func (s *CouponService) GetEligibleAutoApplyCoupons(userID uint, items []models.CartItem) ([]CouponEvaluation, error) {
	candidates, err := s.couponRepo.ListAutoApplyCandidates(s.now())
	if err != nil {
		return nil, err
	}
	eligible := make([]CouponEvaluation, 0, len(candidates))
	for i := range candidates {
		coupon := &candidates[i]
		evaluation, err := s.Validate(coupon, userID, items)
		if err != nil {
			if !IsCouponEligibilityError(err) {
				return nil, err
			}
			logger.Debugw("coupon_auto_apply_not_eligible",
				"coupon_id", coupon.ID,
				"code", coupon.Code,
				"user_id", userID,
				"reason", err.Error(),
			)
			continue
		}
		eligible = append(eligible, *evaluation)
	}
	return eligible, nil
}

// ListUserUsages 分页查询用户的优惠券使用记录
func (s *CouponService) ListUserUsages(userID uint, page, pageSize int) ([]models.CouponUsage, int64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	return s.usageRepo.ListByUser(repository.CouponUsageListFilter{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	})
}

// RemovalReason 将资格错误转换为移除原因
func RemovalReason(err error) string {
	switch {
	case errors.Is(err, ErrCouponNotFound):
		return constants.CouponRemovalNotFound
	case errors.Is(err, ErrCouponInactive):
		return constants.CouponRemovalInactive
	case errors.Is(err, ErrCouponNotStarted):
		return constants.CouponRemovalNotStarted
	case errors.Is(err, ErrCouponExpired):
		return constants.CouponRemovalExpired
	case errors.Is(err, ErrCouponUsageLimit):
		return constants.CouponRemovalUsageLimit
	case errors.Is(err, ErrCouponPerUserLimit):
		return constants.CouponRemovalPerUserLimit
	case errors.Is(err, ErrCouponMinItems):
		return constants.CouponRemovalMinItems
	case errors.Is(err, ErrCouponMinAmount):
		return constants.CouponRemovalMinAmount
	case errors.Is(err, ErrCouponScopeInvalid):
		return constants.CouponRemovalScope
	default:
		return constants.CouponRemovalUnknown
	}
}

func countQuantity(items []models.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// eligibleSubtotal 计算适用商品小计；未限制商品时即为整车小计
func eligibleSubtotal(coupon *models.Coupon, items []models.CartItem) (decimal.Decimal, bool) {
	restricted := len(coupon.ScopeRefIDs) > 0
	subtotal := decimal.Zero
	matched := false
	for _, item := range items {
		if restricted && !coupon.ScopeRefIDs.Contains(item.ProductID) {
			continue
		}
		matched = true
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal, matched
}

func computeDiscount(coupon *models.Coupon, eligibleSubtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(coupon.DiscountType)) {
	case constants.CouponDiscountFixed:
		discount = coupon.DiscountValue.Decimal
	case constants.CouponDiscountPercentage:
		discount = eligibleSubtotal.Mul(coupon.DiscountValue.Decimal).Div(hundred)
	default:
		return decimal.Zero
	}

	if coupon.MaxDiscountAmount.Decimal.GreaterThan(decimal.Zero) && discount.GreaterThan(coupon.MaxDiscountAmount.Decimal) {
		discount = coupon.MaxDiscountAmount.Decimal
	}
	if discount.GreaterThan(eligibleSubtotal) {
		discount = eligibleSubtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

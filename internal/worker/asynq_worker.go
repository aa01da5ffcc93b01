package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/provider"
	"github.com/cartflow/internal/queue"
	"github.com/cartflow/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCouponExhaustedSweep, c.handleCouponExhaustedSweep)
}

func (c *Consumer) handleCouponExhaustedSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_coupon_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCouponExhaustedSweepPayload(task)
	if err != nil {
		logger.Warnw("worker_coupon_sweep_unmarshal_failed", "error", err)
		return err
	}
	if payload.CouponID == 0 {
		logger.Debugw("worker_coupon_sweep_skip_invalid_payload", "coupon_id", payload.CouponID)
		return nil
	}
	removed, err := c.SweepCoupon(ctx, payload.CouponID)
	if err != nil {
		logger.Warnw("worker_coupon_sweep_failed", "coupon_id", payload.CouponID, "code", payload.Code, "error", err)
		return err
	}
	logger.Infow("worker_coupon_sweep_done", "coupon_id", payload.CouponID, "code", payload.Code, "removed", removed)
	return nil
}

// SweepCoupon 重新校验所有挂载该优惠券的 active 购物车，返回被移除的次数
//
// 单个购物车失败不影响其余购物车，汇总错误交给队列重试。
func (c *Consumer) SweepCoupon(ctx context.Context, couponID uint) (int, error) {
	if c == nil || c.CartRepo == nil || c.CartService == nil {
		return 0, errors.New("consumer not initialized")
	}
	cartIDs, err := c.CartRepo.ListActiveIDsByCoupon(couponID)
	if err != nil {
		return 0, err
	}
	removedTotal := 0
	var errs []error
	for _, cartID := range cartIDs {
		removed, err := c.CartService.RevalidateCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, service.ErrCartBusy) {
				logger.Debugw("worker_coupon_sweep_cart_busy", "coupon_id", couponID, "cart_id", cartID)
			} else {
				logger.Warnw("worker_coupon_sweep_cart_failed", "coupon_id", couponID, "cart_id", cartID, "error", err)
			}
			errs = append(errs, err)
			continue
		}
		removedTotal += len(removed)
	}
	return removedTotal, errors.Join(errs...)
}

// SweepUnavailable 扫描已停用、过期或用尽但仍挂在购物车上的优惠券
func (c *Consumer) SweepUnavailable(ctx context.Context, now time.Time) (int, error) {
	if c == nil || c.CouponRepo == nil {
		return 0, errors.New("consumer not initialized")
	}
	coupons, err := c.CouponRepo.ListUnavailableAttached(now)
	if err != nil {
		return 0, err
	}
	removedTotal := 0
	var errs []error
	for _, coupon := range coupons {
		if err := ctx.Err(); err != nil {
			return removedTotal, err
		}
		removed, err := c.SweepCoupon(ctx, coupon.ID)
		removedTotal += removed
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removedTotal, errors.Join(errs...)
}

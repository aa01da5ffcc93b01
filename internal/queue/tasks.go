package queue

import (
	"encoding/json"

	"github.com/cartflow/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCouponExhaustedSweep 优惠券用尽后清理购物车任务
	TaskCouponExhaustedSweep = constants.TaskCouponExhaustedSweep
)

// CouponExhaustedSweepPayload 优惠券清理任务载荷
type CouponExhaustedSweepPayload struct {
	CouponID uint   `json:"coupon_id"`
	Code     string `json:"code"`
}

// NewCouponExhaustedSweepTask 创建优惠券清理任务
func NewCouponExhaustedSweepTask(payload CouponExhaustedSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCouponExhaustedSweep, body), nil
}

// ParseCouponExhaustedSweepPayload 解析优惠券清理任务载荷
func ParseCouponExhaustedSweepPayload(task *asynq.Task) (CouponExhaustedSweepPayload, error) {
	var payload CouponExhaustedSweepPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

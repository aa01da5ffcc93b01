package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cartflow/internal/config"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
//
// 队列未启用时只运行周期性清理循环。
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
	done          chan struct{}
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, sweepInterval time.Duration, consumer *Consumer) (*Service, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	queueEnabled := cfg != nil && cfg.Enabled
	if !queueEnabled && sweepInterval <= 0 {
		return nil, errors.New("queue disabled and coupon sweep disabled")
	}
	s := &Service{
		name:          "worker",
		consumer:      consumer,
		sweepInterval: sweepInterval,
		done:          make(chan struct{}),
	}
	if queueEnabled {
		opt, serverCfg := queue.BuildServerConfig(cfg)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	}
	return s, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.sweepInterval > 0 {
		go s.runCouponSweepLoop(ctx)
	}
	if s.server == nil {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}

func (s *Service) runCouponSweepLoop(ctx context.Context) {
	runOnce := func() {
		removed, err := s.consumer.SweepUnavailable(ctx, time.Now())
		if err != nil {
			logger.Warnw("worker_coupon_sweep_loop_failed", "removed", removed, "error", err)
			return
		}
		if removed > 0 {
			logger.Infow("worker_coupon_sweep_loop_done", "removed", removed)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

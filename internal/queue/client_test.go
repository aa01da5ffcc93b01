package queue

import (
	"testing"

	"github.com/cartflow/internal/config"

	"github.com/hibiken/asynq"
)

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("disabled client should report disabled")
	}
	if err := client.EnqueueCouponExhaustedSweep(CouponExhaustedSweepPayload{CouponID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client should report disabled")
	}
}

func TestBuildServerConfig(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("default addr want 127.0.0.1:6379 got %s", opt.Addr)
	}
	if cfg.Concurrency != 10 || cfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("unexpected default server config: %+v", cfg)
	}

	opt, cfg = BuildServerConfig(&config.QueueConfig{
		Host:        " redis ",
		Port:        6380,
		DB:          2,
		Concurrency: 4,
		Queues:      map[string]int{DefaultQueue: 3},
	})
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt: %+v", opt)
	}
	if cfg.Concurrency != 4 || cfg.Queues[DefaultQueue] != 3 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}

func TestParseCouponExhaustedSweepPayload(t *testing.T) {
	payload, err := ParseCouponExhaustedSweepPayload(nil)
	if err != nil || payload.CouponID != 0 {
		t.Fatalf("nil task should yield empty payload, got %+v err=%v", payload, err)
	}
	if _, err := ParseCouponExhaustedSweepPayload(asynq.NewTask(TaskCouponExhaustedSweep, []byte("{"))); err == nil {
		t.Fatalf("malformed payload should fail")
	}
}

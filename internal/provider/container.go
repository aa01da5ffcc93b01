package provider

import (
	"errors"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/config"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/queue"
	"github.com/cartflow/internal/repository"
	"github.com/cartflow/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	ProductRepo     repository.ProductRepository
	CartRepo        repository.CartRepository
	CouponRepo      repository.CouponRepository
	CouponUsageRepo repository.CouponUsageRepository

	// Services
	CouponService   *service.CouponService
	CartService     *service.CartService
	CheckoutService *service.CheckoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存（购物车锁、结算限流）
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时返回空实现
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.CouponUsageRepo = repository.NewCouponUsageRepository(db)
}

func (c *Container) initServices() {
	lockOpts := cache.LockOptions{
		TTL:  c.Config.CartLockTTL(),
		Wait: c.Config.Cart.LockWait(),
	}
	c.CouponService = service.NewCouponService(c.CouponRepo, c.CouponUsageRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.ProductRepo, c.CouponService, lockOpts)
	c.CheckoutService = service.NewCheckoutService(
		c.CartRepo,
		c.ProductRepo,
		c.CouponRepo,
		c.CouponUsageRepo,
		c.CouponService,
		c.QueueClient,
		lockOpts,
		c.Config.Checkout.Timeout(),
	)
}

// Close 释放队列客户端与 Redis 连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.QueueClient.Close(), cache.Close())
}

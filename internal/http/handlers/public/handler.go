package public

import "github.com/cartflow/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：请求到达前已由鉴权中间件写入 user_id。
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

package sentry

import (
	"github.com/gin-gonic/gin"
)

// TagKeyFunc 从请求中提取上报标签
type TagKeyFunc func(c *gin.Context) map[string]string

// Middleware 上报 handler 中的 panic 后继续向外抛出，由外层 Recovery 中间件负责响应
func Middleware(client *Client, tagsFn TagKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				tags := map[string]string{
					"route":  c.FullPath(),
					"method": c.Request.Method,
				}
				if tagsFn != nil {
					for k, v := range tagsFn(c) {
						tags[k] = v
					}
				}
				client.CapturePanic(c.Request.Context(), r, tags)
				panic(r)
			}
		}()
		c.Next()
	}
}

package logger

import (
	"context"

	"go.uber.org/zap"
)

// 常用的请求级字段名
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldBannerID  = "banner_id"
	FieldTraceID   = "trace_id"
)

type contextFieldsKey struct{}

// ContextFieldExtractor 从 context 提取字段的函数类型
type ContextFieldExtractor func(ctx context.Context) []zap.Field

// WithContextFields 将键值对挂到 context 上，后续 *Context 日志方法会自动带出
// 已存在的同名字段会被覆盖
func WithContextFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}

	prev, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	fields := make([]zap.Field, 0, len(prev)+len(keysAndValues)/2)
	added := make(map[string]zap.Field, len(keysAndValues)/2)
	order := make([]string, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if _, seen := added[key]; !seen {
			order = append(order, key)
		}
		added[key] = zap.Any(key, keysAndValues[i+1])
	}

	for _, f := range prev {
		if _, overridden := added[f.Key]; !overridden {
			fields = append(fields, f)
		}
	}
	for _, key := range order {
		fields = append(fields, added[key])
	}

	return context.WithValue(ctx, contextFieldsKey{}, fields)
}

// DefaultContextExtractor 读取 WithContextFields 挂载的字段
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	copy(out, fields)
	return out
}

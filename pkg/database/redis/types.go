package redis

// Message Pub/Sub 消息（隐藏 go-redis 类型）
type Message struct {
	Channel string
	Pattern string // 模式订阅时的匹配模式
	Payload string
}

package ws

import (
	"sync"
)

// Event 推送事件
type Event struct {
	Type string      `json:"type"` // 事件类型
	Data interface{} `json:"data"` // 事件数据
}

// Subscriber 订阅者连接
type Subscriber struct {
	ID       string
	Channel  chan Event
	Resource string // 订阅的资源 ID (如 asr:xxx, upload:xxx)
}

// Hub 按资源分组的订阅管理器
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]bool // resource -> subscribers
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]bool),
	}
}

// Subscribe 注册订阅者
func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[sub.Resource] == nil {
		h.subscribers[sub.Resource] = make(map[*Subscriber]bool)
	}
	h.subscribers[sub.Resource][sub] = true
}

// Unsubscribe 注销订阅者并关闭其通道
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[sub.Resource]; ok {
		if _, exists := subs[sub]; exists {
			delete(subs, sub)
			close(sub.Channel)

			// 清理空资源
			if len(subs) == 0 {
				delete(h.subscribers, sub.Resource)
			}
		}
	}
}

// Broadcast 向订阅指定资源的所有订阅者广播消息
func (h *Hub) Broadcast(resource string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[resource]; ok {
		for sub := range subs {
			select {
			case sub.Channel <- event:
			default:
				// 订阅者缓冲区满,跳过
			}
		}
	}
}

// SubscriberCount 获取订阅指定资源的订阅者数量
func (h *Hub) SubscriberCount(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[resource]; ok {
		return len(subs)
	}
	return 0
}

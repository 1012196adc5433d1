package importer

import (
	"context"
	"sync"
)

// DefaultAbstainCapacity abstain 紀錄的預設保留筆數
const DefaultAbstainCapacity = 20

// AbstainRecorder 保存 abstain 事件
type AbstainRecorder interface {
	Record(ctx context.Context, event AbstainEvent)
	Recent(ctx context.Context) []AbstainEvent
}

// RingBuffer 固定容量的 abstain 事件佇列，滿了之後淘汰最舊的
type RingBuffer struct {
	mu     sync.Mutex
	events []AbstainEvent
	next   int
	full   bool
}

// NewRingBuffer 建立 ring buffer；capacity <= 0 時使用預設值
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultAbstainCapacity
	}
	return &RingBuffer{events: make([]AbstainEvent, capacity)}
}

// Capacity 容量
func (b *RingBuffer) Capacity() int {
	return len(b.events)
}

// Len 目前筆數
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.events)
	}
	return b.next
}

// Record 寫入一筆事件
func (b *RingBuffer) Record(_ context.Context, event AbstainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[b.next] = event
	b.next = (b.next + 1) % len(b.events)
	if b.next == 0 {
		b.full = true
	}
}

// Recent 回傳由舊到新的快照，呼叫端修改不影響內部狀態
func (b *RingBuffer) Recent(_ context.Context) []AbstainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]AbstainEvent, b.next)
		copy(out, b.events[:b.next])
		return cloneEvents(out)
	}
	out := make([]AbstainEvent, 0, len(b.events))
	out = append(out, b.events[b.next:]...)
	out = append(out, b.events[:b.next]...)
	return cloneEvents(out)
}

// cloneEvents 複製指標欄位，避免快照與內部共用
func cloneEvents(events []AbstainEvent) []AbstainEvent {
	for i := range events {
		if events[i].Support != nil {
			s := *events[i].Support
			events[i].Support = &s
		}
		if events[i].EvidenceSizes != nil {
			e := *events[i].EvidenceSizes
			events[i].EvidenceSizes = &e
		}
	}
	return events
}

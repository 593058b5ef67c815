package consensus

import (
	"fmt"

	"github.com/dep2p/go-vchat/pkg/types"
)

// initialMetricsCapacity 指标集合的默认初始容量
const initialMetricsCapacity = 10

// Collection 单轮收集到的参与者指标容器
//
// 可增长、保持插入顺序。插入顺序对选举算法无意义（算法全量扫描），
// 但保留用于诊断，并作为评分完全相同时的确定性决胜依据。
// 由状态机在轮次生命周期内独占持有。
type Collection struct {
	entries []types.ParticipantMetrics
}

// NewCollection 创建空集合
//
// capacity 不为正时使用默认初始容量（10）。
func NewCollection(capacity int) *Collection {
	if capacity <= 0 {
		capacity = initialMetricsCapacity
	}
	return &Collection{
		entries: make([]types.ParticipantMetrics, 0, capacity),
	}
}

// Add 追加一条指标记录
//
// 容量不足时倍增扩容；除内存耗尽外不会失败。
func (c *Collection) Add(m types.ParticipantMetrics) {
	if len(c.entries) == cap(c.entries) {
		grown := make([]types.ParticipantMetrics, len(c.entries), cap(c.entries)*2)
		copy(grown, c.entries)
		c.entries = grown
	}
	c.entries = append(c.entries, m)
}

// Len 返回当前指标数
func (c *Collection) Len() int {
	return len(c.entries)
}

// Cap 返回当前容量
func (c *Collection) Cap() int {
	return cap(c.entries)
}

// At 返回指定位置的指标
func (c *Collection) At(index int) (types.ParticipantMetrics, error) {
	if index < 0 || index >= len(c.entries) {
		return types.ParticipantMetrics{}, fmt.Errorf("%w: %d (count: %d)", ErrIndexOutOfRange, index, len(c.entries))
	}
	return c.entries[index], nil
}

// Entries 按插入顺序返回全部指标的副本
//
// 任何时刻调用都有效。
func (c *Collection) Entries() []types.ParticipantMetrics {
	out := make([]types.ParticipantMetrics, len(c.entries))
	copy(out, c.entries)
	return out
}

// Reset 清空集合，保留已分配容量
//
// 每个收集阶段开始时调用。
func (c *Collection) Reset() {
	c.entries = c.entries[:0]
}

package interfaces

import (
	"context"

	"github.com/dep2p/go-vchat/pkg/types"
)

// ============================================================================
//                              Topology - 环拓扑
// ============================================================================

// Topology 环拓扑视图
//
// 有序的会话成员集合加上确定性的 Leader 规则。由会话成员管理层
// 提供和持有；拓扑变化时整体替换，而不是原地修改。
type Topology interface {
	// AmLeader 检查本参与者是否为拓扑指定的 Leader
	AmLeader() bool

	// Leader 返回拓扑指定的 Leader
	Leader() types.ParticipantID

	// Members 按环序返回全部成员
	Members() []types.ParticipantID

	// Successor 返回环中给定成员的后继
	Successor(id types.ParticipantID) (types.ParticipantID, bool)

	// Contains 检查成员是否在环内
	Contains(id types.ParticipantID) bool

	// Size 返回环内成员数
	Size() int
}

// ============================================================================
//                              MetricsCollector - 本地测量
// ============================================================================

// MetricsCollector 本参与者网络质量测量器
//
// 每个收集轮次调用一次。实现负责 NAT 层级、带宽、RTT 与 STUN
// 探测成功率的实际测量；返回记录必须满足
// types.ParticipantMetrics.Validate()。
type MetricsCollector interface {
	// Measure 测量本参与者当前的网络质量
	Measure(ctx context.Context, id types.ParticipantID) (types.ParticipantMetrics, error)
}

// ============================================================================
//                              传输与通知回调
// ============================================================================

// PacketSender 共识数据包发送回调
//
// 由接入模式（TCP/WebRTC 等）提供；负责把已编码的共识数据包送达
// 环中的下一个参与者。帧格式、重试均由传输层自理。
type PacketSender func(next types.ParticipantID, packet []byte) error

// ElectionObserver 选举完成通知回调
//
// 每次成功选举调用一次；返回错误只记录日志，不回滚已计算的结果。
type ElectionObserver func(result types.ElectionResult) error

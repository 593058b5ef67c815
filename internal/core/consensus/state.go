package consensus

import (
	"fmt"
	"time"

	"github.com/dep2p/go-vchat/pkg/interfaces"
	"github.com/dep2p/go-vchat/pkg/types"
)

// ============================================================================
//                              State - 轮次状态
// ============================================================================

// State 单轮共识的状态
type State int

const (
	// StateIdle 空闲，等待下一轮
	StateIdle State = iota

	// StateCollecting 收集窗口开放，接收指标
	StateCollecting

	// StateCollectionComplete 收集结束、尚未分流的瞬时状态
	//
	// 收集完成会立即迁移到 ElectionStart（Leader）或 Idle（非 Leader），
	// 对外观察不到停留。
	StateCollectionComplete

	// StateElectionStart 指标就绪，可计算选举（仅 Leader 进入）
	StateElectionStart

	// StateElecting 预留：选举计算的中间步骤
	//
	// 当前实现同步计算，没有迁移会进入此状态。
	StateElecting

	// StateElectionComplete 选举结果就绪，等待确认归位
	StateElectionComplete

	// StateFailed 不可恢复错误
	StateFailed
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCollecting:
		return "Collecting"
	case StateCollectionComplete:
		return "CollectionComplete"
	case StateElectionStart:
		return "ElectionStart"
	case StateElecting:
		return "Electing"
	case StateElectionComplete:
		return "ElectionComplete"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// metricsReadable 指标读取在这些状态下合法
func (s State) metricsReadable() bool {
	switch s {
	case StateCollecting, StateCollectionComplete, StateElectionStart, StateElecting, StateElectionComplete:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              StateMachine - 单轮状态机
// ============================================================================

// StateMachine 驱动单个参与者视角下的一轮共识
//
// 纯状态逻辑，不涉及时间与网络。非法迁移返回 ErrInvalidState 且
// 不改变任何状态。非并发安全，由 Coordinator 持锁调用。
type StateMachine struct {
	state      State
	myID       types.ParticipantID
	topology   interfaces.Topology
	collection *Collection
	minMetrics int

	hostID    types.ParticipantID
	backupID  types.ParticipantID
	electedAt time.Time
	hasResult bool
}

// NewStateMachine 创建处于 Idle 的状态机
//
// minMetrics 小于 2 时按 2 处理；capacity 不为正时用默认容量。
func NewStateMachine(myID types.ParticipantID, topology interfaces.Topology, minMetrics, capacity int) (*StateMachine, error) {
	if myID.IsEmpty() {
		return nil, ErrEmptyID
	}
	if topology == nil {
		return nil, ErrNilTopology
	}
	if minMetrics < 2 {
		minMetrics = 2
	}
	return &StateMachine{
		state:      StateIdle,
		myID:       myID,
		topology:   topology,
		collection: NewCollection(capacity),
		minMetrics: minMetrics,
	}, nil
}

// State 返回当前状态
func (m *StateMachine) State() State {
	return m.state
}

// IsLeader 判断本参与者是否为当前拓扑的 Leader
func (m *StateMachine) IsLeader() bool {
	return m.topology.AmLeader()
}

// StartCollection 开启收集阶段（Idle → Collecting）
//
// 清空上一轮的指标与选举结果。
func (m *StateMachine) StartCollection() error {
	if m.state != StateIdle {
		return fmt.Errorf("%w: start collection in %s", ErrInvalidState, m.state)
	}
	m.collection.Reset()
	m.hostID = types.EmptyParticipantID
	m.backupID = types.EmptyParticipantID
	m.electedAt = time.Time{}
	m.hasResult = false
	m.state = StateCollecting
	return nil
}

// AddMetrics 添加一条指标（仅 Collecting 状态）
func (m *StateMachine) AddMetrics(metric types.ParticipantMetrics) error {
	if m.state != StateCollecting {
		return fmt.Errorf("%w: add metrics in %s", ErrInvalidState, m.state)
	}
	m.collection.Add(metric)
	return nil
}

// CollectionComplete 结束收集阶段
//
// Leader 迁移到 ElectionStart 准备计算；非 Leader 本轮职责已尽，
// 直接回到 Idle 等待 ELECTION_RESULT。
func (m *StateMachine) CollectionComplete() error {
	if m.state != StateCollecting {
		return fmt.Errorf("%w: complete collection in %s", ErrInvalidState, m.state)
	}
	if m.topology.AmLeader() {
		m.state = StateElectionStart
	} else {
		m.state = StateIdle
	}
	return nil
}

// ComputeElection 以确定性算法计算 主机/备用主机（ElectionStart → ElectionComplete）
//
// 指标不足 minMetrics 时返回 ErrInsufficientMetrics，状态保持不变，
// 调用方可选择等待或放弃本轮。
func (m *StateMachine) ComputeElection(now time.Time) error {
	if m.state != StateElectionStart {
		return fmt.Errorf("%w: compute election in %s", ErrInvalidState, m.state)
	}
	if m.collection.Len() < m.minMetrics {
		return fmt.Errorf("%w: have %d", ErrInsufficientMetrics, m.collection.Len())
	}

	best, backup := chooseHosts(m.collection.entries)
	m.hostID = m.collection.entries[best].ParticipantID
	m.backupID = m.collection.entries[backup].ParticipantID
	m.electedAt = now
	m.hasResult = true
	m.state = StateElectionComplete
	return nil
}

// ResetToIdle 确认结果并归位（ElectionComplete → Idle）
//
// 结果保留，下一次 StartCollection 才清除。
func (m *StateMachine) ResetToIdle() error {
	if m.state != StateElectionComplete {
		return fmt.Errorf("%w: reset to idle in %s", ErrInvalidState, m.state)
	}
	m.state = StateIdle
	return nil
}

// Result 返回本轮的选举结果（仅 ElectionComplete 状态）
func (m *StateMachine) Result() (types.ElectionResult, error) {
	if m.state != StateElectionComplete || !m.hasResult {
		return types.ElectionResult{}, fmt.Errorf("%w: state %s", ErrNoResult, m.state)
	}
	return types.ElectionResult{
		HostID:    m.hostID,
		BackupID:  m.backupID,
		ElectedAt: m.electedAt,
	}, nil
}

// ElectedHost 返回当选的中继主机（仅 ElectionComplete 状态）
func (m *StateMachine) ElectedHost() (types.ParticipantID, error) {
	result, err := m.Result()
	if err != nil {
		return types.EmptyParticipantID, err
	}
	return result.HostID, nil
}

// ElectedBackup 返回当选的备用主机（仅 ElectionComplete 状态）
func (m *StateMachine) ElectedBackup() (types.ParticipantID, error) {
	result, err := m.Result()
	if err != nil {
		return types.EmptyParticipantID, err
	}
	return result.BackupID, nil
}

// MetricsCount 返回本轮已收集的指标数
func (m *StateMachine) MetricsCount() int {
	return m.collection.Len()
}

// MetricAt 返回指定位置的指标
//
// 在 Collecting、CollectionComplete、ElectionStart、Electing、
// ElectionComplete 状态下合法，Idle/Failed 下返回 ErrInvalidState。
func (m *StateMachine) MetricAt(index int) (types.ParticipantMetrics, error) {
	if !m.state.metricsReadable() {
		return types.ParticipantMetrics{}, fmt.Errorf("%w: read metrics in %s", ErrInvalidState, m.state)
	}
	return m.collection.At(index)
}

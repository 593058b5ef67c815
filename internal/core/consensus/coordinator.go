package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/internal/util/logger"
	"github.com/dep2p/go-vchat/pkg/interfaces"
	"github.com/dep2p/go-vchat/pkg/types"
)

// ============================================================================
//                              Coordinator - 轮次协调器
// ============================================================================

// Coordinator 驱动周期性选举轮次
//
// 持有状态机并叠加时间语义：Leader 每隔 RoundInterval 发起一轮，
// 收集窗口 CollectionWindow 到期后用已到达的指标完成选举。
// 所有方法并发安全；选举回调在 Process 调用方的 goroutine 上、
// 不持锁执行。
type Coordinator struct {
	mu sync.Mutex

	myID      types.ParticipantID
	topology  interfaces.Topology
	collector interfaces.MetricsCollector
	observer  interfaces.ElectionObserver
	clock     clock.Clock
	cfg       config.ConsensusConfig
	log       *slog.Logger
	prom      *promMetrics

	sm *StateMachine

	lastRoundStart time.Time
	nextRoundID    types.RoundID
	currentRoundID types.RoundID
	deadline       time.Time

	// 跨轮保留的最近一次生效结果
	stored    types.ElectionResult
	hasStored bool

	// 本轮测得的自身指标，供传输层沿环上报
	selfMetric    types.ParticipantMetrics
	hasSelfMetric bool
}

// Option 协调器可选配置
type Option func(*Coordinator)

// WithClock 注入时钟（测试用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithObserver 注入选举完成回调
func WithObserver(observer interfaces.ElectionObserver) Option {
	return func(c *Coordinator) { c.observer = observer }
}

// WithRegisterer 注入 Prometheus 注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Coordinator) { c.prom = newPromMetrics(reg) }
}

// NewCoordinator 创建协调器
//
// myID、topology、collector 必选。首轮在创建后一个完整 RoundInterval
// 才会发起，给传输层建链留出时间。
func NewCoordinator(
	myID types.ParticipantID,
	topology interfaces.Topology,
	collector interfaces.MetricsCollector,
	cfg config.ConsensusConfig,
	opts ...Option,
) (*Coordinator, error) {
	if myID.IsEmpty() {
		return nil, ErrEmptyID
	}
	if topology == nil {
		return nil, ErrNilTopology
	}
	if collector == nil {
		return nil, ErrNilCollector
	}

	c := &Coordinator{
		myID:        myID,
		topology:    topology,
		collector:   collector,
		clock:       clock.New(),
		cfg:         cfg,
		log:         logger.Logger("consensus"),
		nextRoundID: 1,
	}
	for _, opt := range opts {
		opt(c)
	}

	sm, err := NewStateMachine(myID, topology, cfg.MinParticipants, cfg.MetricsCapacity)
	if err != nil {
		return nil, err
	}
	c.sm = sm
	c.lastRoundStart = c.clock.Now()
	return c, nil
}

// ============================================================================
//                              轮次驱动
// ============================================================================

// Process 推进协调器，由事件循环周期性调用
//
// Leader 且空闲且距上轮已满 RoundInterval 时发起新一轮；收集中且
// 已过截止时间时完成收集。一次调用最多推进一个阶段。
func (c *Coordinator) Process(ctx context.Context) error {
	c.mu.Lock()
	now := c.clock.Now()

	var err error
	var result types.ElectionResult
	var elected bool

	switch c.sm.State() {
	case StateIdle:
		if c.topology.AmLeader() && now.Sub(c.lastRoundStart) >= c.cfg.RoundInterval.Duration() {
			err = c.startRoundLocked(ctx, now)
		}
	case StateCollecting:
		if !now.Before(c.deadline) {
			result, elected, err = c.completeCollectionLocked(now)
		}
	}
	c.mu.Unlock()

	if elected {
		c.notifyObserver(result)
	}
	return err
}

// startRoundLocked Leader 发起新一轮（须持锁）
func (c *Coordinator) startRoundLocked(ctx context.Context, now time.Time) error {
	if err := c.sm.StartCollection(); err != nil {
		return err
	}
	c.currentRoundID = c.nextRoundID
	c.nextRoundID++
	c.lastRoundStart = now
	c.deadline = now.Add(c.cfg.CollectionWindow.Duration())
	c.prom.roundStarted()

	c.log.Info("election round started",
		"round", c.currentRoundID,
		"deadline", c.deadline,
		"members", c.topology.Size())

	c.measureSelfLocked(ctx)
	return nil
}

// measureSelfLocked 测量并登记本参与者的指标（须持锁）
//
// 测量失败只记录日志，轮次用其他参与者的指标继续。
func (c *Coordinator) measureSelfLocked(ctx context.Context) {
	c.hasSelfMetric = false
	metric, err := c.collector.Measure(ctx, c.myID)
	if err != nil {
		c.log.Warn("self metrics measurement failed", "error", err)
		return
	}
	if err := c.sm.AddMetrics(metric); err != nil {
		c.log.Warn("failed to record self metrics", "error", err)
		return
	}
	c.selfMetric = metric
	c.hasSelfMetric = true
	c.prom.statsAccepted(1)
}

// completeCollectionLocked 截止时间到达，结束收集（须持锁）
//
// Leader 随即计算选举；指标不足时放弃本轮回到 Idle，等待下一轮。
// 返回的 result/elected 供调用方在锁外通知观察者。
func (c *Coordinator) completeCollectionLocked(now time.Time) (types.ElectionResult, bool, error) {
	if err := c.sm.CollectionComplete(); err != nil {
		return types.ElectionResult{}, false, err
	}
	if c.sm.State() != StateElectionStart {
		// 非 Leader：本轮职责已尽
		return types.ElectionResult{}, false, nil
	}

	start := c.clock.Now()
	if err := c.sm.ComputeElection(now); err != nil {
		c.log.Warn("election abandoned",
			"round", c.currentRoundID,
			"metrics", c.sm.MetricsCount(),
			"error", err)
		c.prom.electionFailed()
		c.abortRoundLocked()
		return types.ElectionResult{}, false, nil
	}
	c.prom.electionComputed(c.clock.Now().Sub(start))

	result, err := c.sm.Result()
	if err != nil {
		return types.ElectionResult{}, false, err
	}

	// 立即存为兜底：即使 ELECTION_RESULT 确认丢失，查询也能返回本轮结果
	c.stored = result
	c.hasStored = true

	c.log.Info("election complete",
		"round", c.currentRoundID,
		"host", result.HostID.ShortString(),
		"backup", result.BackupID.ShortString())
	return result, true, nil
}

// abortRoundLocked 放弃进行中的轮次，状态机重建回 Idle（须持锁）
func (c *Coordinator) abortRoundLocked() {
	sm, err := NewStateMachine(c.myID, c.topology, c.cfg.MinParticipants, c.cfg.MetricsCapacity)
	if err != nil {
		// 构造参数在创建协调器时已校验过
		c.log.Error("state machine rebuild failed", "error", err)
		return
	}
	c.sm = sm
}

// notifyObserver 锁外通知选举回调
func (c *Coordinator) notifyObserver(result types.ElectionResult) {
	if c.observer == nil {
		return
	}
	if err := c.observer(result); err != nil {
		c.log.Warn("election observer returned error", "error", err)
	}
}

// ============================================================================
//                              入站协议事件
// ============================================================================

// OnRingMembersChanged 成员变化，整体替换拓扑
//
// 进行中的轮次作废：旧成员集合下收集的指标对新环没有意义。
func (c *Coordinator) OnRingMembersChanged(topology interfaces.Topology) error {
	if topology == nil {
		return ErrNilTopology
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.topology = topology
	if c.sm.State() != StateIdle {
		c.log.Info("topology changed mid-round, abandoning round",
			"round", c.currentRoundID,
			"state", c.sm.State().String())
		c.abortRoundLocked()
		return nil
	}

	sm, err := NewStateMachine(c.myID, topology, c.cfg.MinParticipants, c.cfg.MetricsCapacity)
	if err != nil {
		return err
	}
	c.sm = sm
	return nil
}

// OnCollectionStart 收到 Leader 的收集开始通知（非 Leader 路径）
//
// 采纳 Leader 指定的轮次 ID 与截止时间，并立即测量本地指标。
// 仅在 Idle 状态下合法。
func (c *Coordinator) OnCollectionStart(ctx context.Context, roundID types.RoundID, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sm.StartCollection(); err != nil {
		return err
	}
	c.currentRoundID = roundID
	c.deadline = deadline
	c.lastRoundStart = c.clock.Now()
	c.prom.roundStarted()

	c.log.Debug("collection started by leader",
		"round", roundID,
		"deadline", deadline)

	c.measureSelfLocked(ctx)
	return nil
}

// OnStatsUpdate 收到其他参与者的指标
//
// 仅在 Collecting 状态下合法。逐条校验，非法记录跳过并聚合告警，
// 不影响同批其余记录。
func (c *Coordinator) OnStatsUpdate(sender types.ParticipantID, metrics []types.ParticipantMetrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() != StateCollecting {
		return fmt.Errorf("%w: stats update in %s", ErrInvalidState, c.sm.State())
	}

	var errs error
	accepted := 0
	for i, metric := range metrics {
		if err := metric.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		if err := c.sm.AddMetrics(metric); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		accepted++
	}

	c.prom.statsAccepted(accepted)
	if rejected := len(metrics) - accepted; rejected > 0 {
		c.prom.statsRejected(rejected)
		c.log.Warn("rejected stats entries",
			"sender", sender.ShortString(),
			"rejected", rejected,
			"accepted", accepted,
			"error", errs)
	}
	return nil
}

// OnElectionResult 收到选举结果通知
//
// 结果无条件存为兜底（网络分区下采用最后写入生效）；本地状态机
// 处于 ElectionComplete 时确认归位。
func (c *Coordinator) OnElectionResult(hostID, backupID types.ParticipantID) error {
	if hostID.IsEmpty() || backupID.IsEmpty() {
		return ErrEmptyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stored = types.ElectionResult{
		HostID:    hostID,
		BackupID:  backupID,
		ElectedAt: c.clock.Now(),
	}
	c.hasStored = true

	if c.sm.State() == StateElectionComplete {
		if err := c.sm.ResetToIdle(); err != nil {
			return err
		}
	}

	c.log.Debug("election result stored",
		"host", hostID.ShortString(),
		"backup", backupID.ShortString())
	return nil
}

// ============================================================================
//                              查询
// ============================================================================

// CurrentHost 返回当前生效的 主机/备用主机
//
// 优先返回刚完成、尚未确认的本轮结果；否则返回最近一次存储的结果；
// 从未选举过则返回 ErrNoResult。
func (c *Coordinator) CurrentHost() (types.ElectionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result, err := c.sm.Result(); err == nil {
		return result, nil
	}
	if c.hasStored {
		return c.stored, nil
	}
	return types.ElectionResult{}, ErrNoResult
}

// State 返回当前轮次状态
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.State()
}

// MetricsCount 返回本轮已收集的指标数
func (c *Coordinator) MetricsCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.MetricsCount()
}

// MetricAt 返回本轮指定位置的指标
func (c *Coordinator) MetricAt(index int) (types.ParticipantMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.MetricAt(index)
}

// SelfMetrics 返回本轮测得的自身指标
//
// 第二个返回值指示本轮测量是否成功。
func (c *Coordinator) SelfMetrics() (types.ParticipantMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfMetric, c.hasSelfMetric
}

// CurrentRound 返回当前（或最近一轮）的轮次 ID
func (c *Coordinator) CurrentRound() types.RoundID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRoundID
}

// CollectionDeadline 返回当前轮次的收集截止时间
func (c *Coordinator) CollectionDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// TimeUntilNextRound 返回距下一轮发起的剩余时间
//
// 已到期返回 0。非 Leader 也可调用，返回值仅供展示。
func (c *Coordinator) TimeUntilNextRound() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.lastRoundStart.Add(c.cfg.RoundInterval.Duration())
	remaining := next.Sub(c.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

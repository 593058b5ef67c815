package consensus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/internal/util/logger"
	"github.com/dep2p/go-vchat/pkg/interfaces"
	"github.com/dep2p/go-vchat/pkg/types"
)

// defaultTickInterval 事件循环推进协调器的周期
const defaultTickInterval = time.Second

// eventQueueSize 入站事件队列容量
const eventQueueSize = 64

// ============================================================================
//                              Service - 共识服务
// ============================================================================

// Service 共识协议的事件循环
//
// 协调器之上的单属主循环：定时推进轮次、串行处理入站数据包、
// 沿环转发协议消息。传输层通过 HandlePacket 投递数据包，通过
// PacketSender 回调发出数据包；环游走规则：
//
//   - CollectionStart 由 Leader 发出，逐跳转发，回到 Leader 前一跳终止；
//     每个非 Leader 收到后把自身指标打包为 StatsUpdate 发往后继
//   - StatsUpdate 逐跳转发并沿途登记，Leader 是汇点不再转发
//   - ElectionResult 由 Leader 发出，逐跳转发，回到 Leader 前一跳终止
type Service struct {
	myID     types.ParticipantID
	topology interfaces.Topology
	coord    *Coordinator
	send     interfaces.PacketSender
	observer interfaces.ElectionObserver
	clock    clock.Clock
	tick     time.Duration
	promReg  prometheus.Registerer
	log      *slog.Logger

	events chan event

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	starting int32
	running  int32
	closed   int32
}

// event 事件循环处理的单个入站事件
type event struct {
	packet   Packet
	topology interfaces.Topology
}

// ServiceOption 服务可选配置
type ServiceOption func(*Service)

// WithServiceClock 注入时钟（测试用 clock.NewMock）
func WithServiceClock(clk clock.Clock) ServiceOption {
	return func(s *Service) { s.clock = clk }
}

// WithElectionCallback 注入业务侧的选举完成回调
func WithElectionCallback(observer interfaces.ElectionObserver) ServiceOption {
	return func(s *Service) { s.observer = observer }
}

// WithMetricsRegisterer 注入 Prometheus 注册器
func WithMetricsRegisterer(reg prometheus.Registerer) ServiceOption {
	return func(s *Service) { s.promReg = reg }
}

// WithTickInterval 覆盖事件循环推进周期（测试用）
func WithTickInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.tick = d
		}
	}
}

// NewService 创建共识服务
//
// send 回调必选，协议消息无法送达时服务没有存在意义。
func NewService(
	myID types.ParticipantID,
	topology interfaces.Topology,
	collector interfaces.MetricsCollector,
	send interfaces.PacketSender,
	cfg config.ConsensusConfig,
	opts ...ServiceOption,
) (*Service, error) {
	if send == nil {
		return nil, ErrMissingCallback
	}

	s := &Service{
		myID:     myID,
		topology: topology,
		send:     send,
		clock:    clock.New(),
		tick:     defaultTickInterval,
		log:      logger.Logger("consensus"),
		events:   make(chan event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	coordOpts := []Option{
		WithClock(s.clock),
		WithObserver(s.onElectionComputed),
	}
	if s.promReg != nil {
		coordOpts = append(coordOpts, WithRegisterer(s.promReg))
	}

	coord, err := NewCoordinator(myID, topology, collector, cfg, coordOpts...)
	if err != nil {
		return nil, err
	}
	s.coord = coord
	return s, nil
}

// Coordinator 返回底层协调器，用于状态查询
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动事件循环
func (s *Service) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.starting, 0, 1) {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	// running 在 ctx 就绪后才置位，HandlePacket 以它为投递闸门
	atomic.StoreInt32(&s.running, 1)
	s.wg.Add(1)
	go s.loop()

	s.log.Info("consensus service started",
		"participant", s.myID.ShortString(),
		"members", s.topology.Size(),
		"leader", s.topology.AmLeader())
	return nil
}

// Stop 停止事件循环并等待退出
func (s *Service) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 0 {
		return nil
	}

	s.cancel()
	s.wg.Wait()
	s.log.Info("consensus service stopped")
	return nil
}

// ============================================================================
//                              入站投递
// ============================================================================

// HandlePacket 投递一个入站共识数据包
//
// 解码在调用方 goroutine 上同步完成，畸形数据包立即报错；
// 协议处理转交事件循环串行执行。
func (s *Service) HandlePacket(data []byte) error {
	if atomic.LoadInt32(&s.closed) == 1 || atomic.LoadInt32(&s.running) == 0 {
		return ErrServiceClosed
	}

	pkt, err := DecodePacket(data)
	if err != nil {
		return err
	}

	select {
	case s.events <- event{packet: pkt}:
		return nil
	case <-s.ctx.Done():
		return ErrServiceClosed
	}
}

// UpdateMembers 投递拓扑变更
//
// 事件循环串行应用：替换环视图并作废进行中的轮次。
func (s *Service) UpdateMembers(topology interfaces.Topology) error {
	if topology == nil {
		return ErrNilTopology
	}
	if atomic.LoadInt32(&s.closed) == 1 || atomic.LoadInt32(&s.running) == 0 {
		return ErrServiceClosed
	}

	select {
	case s.events <- event{topology: topology}:
		return nil
	case <-s.ctx.Done():
		return ErrServiceClosed
	}
}

// ============================================================================
//                              事件循环
// ============================================================================

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.onTick()
		case ev := <-s.events:
			if ev.topology != nil {
				s.applyTopology(ev.topology)
				continue
			}
			s.applyPacket(ev.packet)
		}
	}
}

// onTick 推进协调器；Leader 发起新一轮时广播收集开始
func (s *Service) onTick() {
	before := s.coord.State()
	if err := s.coord.Process(s.ctx); err != nil {
		s.log.Warn("coordinator process failed", "error", err)
		return
	}

	if before == StateIdle && s.coord.State() == StateCollecting && s.topology.AmLeader() {
		pkt := &CollectionStartPacket{
			RoundID:       s.coord.CurrentRound(),
			DeadlineNanos: uint64(s.coord.CollectionDeadline().UnixNano()),
		}
		s.sendToSuccessor(pkt)
	}
}

func (s *Service) applyTopology(topology interfaces.Topology) {
	if err := s.coord.OnRingMembersChanged(topology); err != nil {
		s.log.Warn("topology update rejected", "error", err)
		return
	}
	s.topology = topology
	s.log.Info("ring topology updated",
		"members", topology.Size(),
		"leader", topology.Leader().ShortString())
}

func (s *Service) applyPacket(pkt Packet) {
	switch p := pkt.(type) {
	case *CollectionStartPacket:
		s.onCollectionStart(p)
	case *StatsUpdatePacket:
		s.onStatsUpdate(p)
	case *ElectionResultPacket:
		s.onElectionResult(p)
	}
}

// onCollectionStart 非 Leader 收到收集开始
func (s *Service) onCollectionStart(p *CollectionStartPacket) {
	deadline := time.Unix(0, int64(p.DeadlineNanos))
	if err := s.coord.OnCollectionStart(s.ctx, p.RoundID, deadline); err != nil {
		s.log.Debug("collection start ignored", "round", p.RoundID, "error", err)
		return
	}

	// 先续传通告，再上报自身指标
	if !s.topology.AmLeader() {
		s.forwardUnlessLeaderNext(p)
	}
	if metric, ok := s.coord.SelfMetrics(); ok {
		s.sendToSuccessor(&StatsUpdatePacket{
			SenderID: s.myID,
			Metrics:  []types.ParticipantMetrics{metric},
		})
	}
}

// onStatsUpdate 收到指标上报；Leader 是汇点
func (s *Service) onStatsUpdate(p *StatsUpdatePacket) {
	if err := s.coord.OnStatsUpdate(p.SenderID, p.Metrics); err != nil {
		s.log.Debug("stats update ignored", "sender", p.SenderID.ShortString(), "error", err)
	}
	if s.topology.AmLeader() {
		return
	}
	next, ok := s.topology.Successor(s.myID)
	if !ok || next == s.myID || next == p.SenderID {
		return
	}
	s.sendPacket(next, p)
}

// onElectionResult 收到选举结果通告
func (s *Service) onElectionResult(p *ElectionResultPacket) {
	if err := s.coord.OnElectionResult(p.HostID, p.BackupID); err != nil {
		s.log.Warn("election result rejected", "error", err)
		return
	}
	if s.topology.AmLeader() {
		// 自己发出的结果绕环回来，回调已在计算时触发过
		return
	}

	s.forwardUnlessLeaderNext(p)
	s.notifyObserver(types.ElectionResult{
		HostID:    p.HostID,
		BackupID:  p.BackupID,
		ElectedAt: s.clock.Now(),
	})
}

// onElectionComputed Leader 选举计算完成（协调器回调，不持协调器锁）
//
// 通告结果、通知业务侧，然后确认归位。
func (s *Service) onElectionComputed(result types.ElectionResult) error {
	s.sendToSuccessor(&ElectionResultPacket{
		HostID:   result.HostID,
		BackupID: result.BackupID,
	})
	s.notifyObserver(result)
	return s.coord.OnElectionResult(result.HostID, result.BackupID)
}

func (s *Service) notifyObserver(result types.ElectionResult) {
	if s.observer == nil {
		return
	}
	if err := s.observer(result); err != nil {
		s.log.Warn("election callback returned error", "error", err)
	}
}

// ============================================================================
//                              环游走
// ============================================================================

// sendToSuccessor 把数据包发往本参与者的后继
func (s *Service) sendToSuccessor(pkt Packet) {
	next, ok := s.topology.Successor(s.myID)
	if !ok || next == s.myID {
		return
	}
	s.sendPacket(next, pkt)
}

// forwardUnlessLeaderNext 续传 Leader 发起的通告
//
// 后继是 Leader 时环已走完一圈，终止。
func (s *Service) forwardUnlessLeaderNext(pkt Packet) {
	next, ok := s.topology.Successor(s.myID)
	if !ok || next == s.myID || next == s.topology.Leader() {
		return
	}
	s.sendPacket(next, pkt)
}

func (s *Service) sendPacket(next types.ParticipantID, pkt Packet) {
	data, err := pkt.Encode()
	if err != nil {
		s.log.Warn("packet encode failed", "type", pkt.Type().String(), "error", err)
		return
	}
	if err := s.send(next, data); err != nil {
		s.log.Warn("packet send failed",
			"type", pkt.Type().String(),
			"next", next.ShortString(),
			"error", err)
	}
}

// Package netprobe 实现本地网络质量测量
//
// 探测器通过 STUN Binding 探测获得公网映射地址、RTT 与探测成功率，
// 并据此推导 NAT 层级，产出共识选举所需的参与者指标。未配置 STUN
// 服务器时退化为静态估计，保证无探测基础设施的会话仍能参与选举。
package netprobe

import (
	"context"
	"net"
	"time"

	"github.com/pion/stun"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/internal/util/logger"
	"github.com/dep2p/go-vchat/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("netprobe")

// 静态估计值，无探测数据时使用
const (
	// defaultUploadKbps 上行带宽估计（100 Mbps）
	//
	// 带宽探测需要对端配合，不在探测器职责内；所有参与者使用同一
	// 估计值时选举退化为纯 RTT 比较，仍然确定。
	defaultUploadKbps = 100_000

	// defaultRTTNanos 静态兜底的 RTT 估计（20 ms）
	defaultRTTNanos = 20_000_000

	// defaultSTUNSuccessPct 静态兜底的探测成功率
	defaultSTUNSuccessPct = 90
)

// probeFunc 单次 STUN 探测，测试用钩子
type probeFunc func(ctx context.Context, server string) (*net.UDPAddr, time.Duration, error)

// Prober STUN 探测器
//
// 实现 interfaces.MetricsCollector。无内部状态，可并发调用。
type Prober struct {
	servers    []string
	timeout    time.Duration
	probeCount int
	uploadKbps uint32

	// 用于测试的钩子函数
	queryFunc probeFunc
}

// ProberOption 探测器可选配置
type ProberOption func(*Prober)

// WithUploadEstimate 覆盖上行带宽估计值（kbps）
func WithUploadEstimate(kbps uint32) ProberOption {
	return func(p *Prober) {
		if kbps > 0 {
			p.uploadKbps = kbps
		}
	}
}

// NewProber 创建探测器
func NewProber(cfg config.ProbeConfig, opts ...ProberOption) *Prober {
	p := &Prober{
		servers:    cfg.STUNServers,
		timeout:    cfg.Timeout.Duration(),
		probeCount: cfg.ProbeCount,
		uploadKbps: defaultUploadKbps,
	}
	if p.timeout <= 0 {
		p.timeout = config.DefaultProbeTimeout
	}
	if p.probeCount <= 0 {
		p.probeCount = config.DefaultProbeCount
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Measure 测量本参与者当前的网络质量
//
// 向配置的 STUN 服务器轮流发送 probeCount 次 Binding 探测，统计
// 成功率与平均 RTT，取最后一次成功响应的映射地址。全部失败时
// 返回 TURN 层级的保守指标而不是错误，让参与者留在选举中垫底。
func (p *Prober) Measure(ctx context.Context, id types.ParticipantID) (types.ParticipantMetrics, error) {
	start := time.Now()

	if len(p.servers) == 0 && p.queryFunc == nil {
		log.Debug("no STUN servers configured, using static metrics")
		return p.staticMetrics(id, start), nil
	}

	var (
		successes int
		totalRTT  time.Duration
		mapped    *net.UDPAddr
	)
	for i := 0; i < p.probeCount; i++ {
		if ctx.Err() != nil {
			return types.ParticipantMetrics{}, ctx.Err()
		}

		server := ""
		if len(p.servers) > 0 {
			server = p.servers[i%len(p.servers)]
		}
		addr, rtt, err := p.probe(ctx, server)
		if err != nil {
			log.Debug("STUN probe failed", "server", server, "error", err)
			continue
		}
		successes++
		totalRTT += rtt
		mapped = addr
	}

	elapsed := time.Since(start)
	pct := uint8(successes * 100 / p.probeCount)

	if successes == 0 {
		log.Warn("all STUN probes failed, reporting TURN tier",
			"probes", p.probeCount)
		return types.ParticipantMetrics{
			ParticipantID:   id,
			NATTier:         types.NATTierTURN,
			UploadKbps:      p.uploadKbps,
			RTTNanos:        defaultRTTNanos,
			STUNSuccessPct:  0,
			ConnectionType:  types.ConnectionTURN,
			MeasuredAtNanos: uint64(start.UnixNano()),
			WindowNanos:     uint64(elapsed),
		}, nil
	}

	tier := classifyTier(mapped, outboundIP())
	m := types.ParticipantMetrics{
		ParticipantID:   id,
		NATTier:         tier,
		UploadKbps:      p.uploadKbps,
		RTTNanos:        clampRTT(totalRTT / time.Duration(successes)),
		STUNSuccessPct:  pct,
		PublicAddress:   mapped.IP.String(),
		PublicPort:      uint16(mapped.Port),
		ConnectionType:  connectionTypeFor(tier),
		MeasuredAtNanos: uint64(start.UnixNano()),
		WindowNanos:     uint64(elapsed),
	}

	log.Debug("measurement complete",
		"tier", m.NATTier.String(),
		"rtt", time.Duration(m.RTTNanos),
		"success_pct", m.STUNSuccessPct,
		"mapped", m.PublicAddress)
	return m, nil
}

// staticMetrics 无探测数据时的静态估计
func (p *Prober) staticMetrics(id types.ParticipantID, start time.Time) types.ParticipantMetrics {
	return types.ParticipantMetrics{
		ParticipantID:   id,
		NATTier:         types.NATTierSTUN,
		UploadKbps:      p.uploadKbps,
		RTTNanos:        defaultRTTNanos,
		STUNSuccessPct:  defaultSTUNSuccessPct,
		ConnectionType:  types.ConnectionSTUN,
		MeasuredAtNanos: uint64(start.UnixNano()),
		WindowNanos:     uint64(time.Since(start)),
	}
}

// probe 执行单次 STUN Binding 探测
func (p *Prober) probe(ctx context.Context, server string) (*net.UDPAddr, time.Duration, error) {
	if p.queryFunc != nil {
		return p.queryFunc(ctx, server)
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, 0, &ProbeError{Message: "resolve server address", Cause: err}
	}

	conn, err := net.DialUDP("udp", nil, serverAddr)
	if err != nil {
		return nil, 0, &ProbeError{Message: "dial server", Cause: err}
	}
	defer conn.Close()

	// 上下文取消时关闭连接解除阻塞的读；探测返回后看门狗随 done 退出
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	deadline := time.Now().Add(p.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, 0, &ProbeError{Message: "build request", Cause: err}
	}

	sent := time.Now()
	if _, err := msg.WriteTo(conn); err != nil {
		return nil, 0, &ProbeError{Message: "send request", Cause: err}
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &ProbeError{Message: "read response", Cause: err}
	}
	rtt := time.Since(sent)

	res := new(stun.Message)
	res.Raw = buf[:n]
	if err := res.Decode(); err != nil {
		return nil, 0, &ProbeError{Message: "decode response", Cause: err}
	}

	addr, err := extractMappedAddress(res)
	if err != nil {
		return nil, 0, err
	}
	return addr, rtt, nil
}

// extractMappedAddress 从 STUN 响应中提取映射地址
//
// 优先 XOR-MAPPED-ADDRESS，回退 MAPPED-ADDRESS（旧版 STUN）。
func extractMappedAddress(msg *stun.Message) (*net.UDPAddr, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(msg); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}

	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(msg); err == nil {
		return &net.UDPAddr{IP: mappedAddr.IP, Port: mappedAddr.Port}, nil
	}

	return nil, &ProbeError{Message: "no mapped address in response"}
}

// clampRTT 把 RTT 压进线上 uint32 纳秒字段
func clampRTT(rtt time.Duration) uint32 {
	if rtt <= 0 {
		return 1
	}
	if rtt.Nanoseconds() > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(rtt.Nanoseconds())
}

// SetQueryFunc 设置探测函数（用于测试）
func (p *Prober) SetQueryFunc(f func(ctx context.Context, server string) (*net.UDPAddr, time.Duration, error)) {
	p.queryFunc = f
}

// ProbeError 探测错误
type ProbeError struct {
	Message string
	Cause   error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return "netprobe: " + e.Message + ": " + e.Cause.Error()
	}
	return "netprobe: " + e.Message
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

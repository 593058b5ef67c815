package types

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              ParticipantMetrics - 参与者网络质量
// ============================================================================

// MaxPublicAddressLen 公网地址字段最大长度
//
// 线上布局为 64 字节定长字符数组（含 NUL 终止），
// 因此可用长度为 63 字节。
const MaxPublicAddressLen = 63

// 指标校验错误
var (
	// ErrNATTierOutOfRange NAT 层级超出 0-4
	ErrNATTierOutOfRange = errors.New("nat tier out of range [0,4]")
	// ErrSTUNPctOutOfRange STUN 探测成功率超出 0-100
	ErrSTUNPctOutOfRange = errors.New("stun probe success pct out of range [0,100]")
	// ErrPublicAddressTooLong 公网地址超出线上布局容量
	ErrPublicAddressTooLong = errors.New("public address exceeds 63 bytes")
)

// ParticipantMetrics 单个参与者的网络质量测量记录
//
// 每个收集轮次刷新一次。模型只约束 NATTier 和 STUNSuccessPct 的取值
// 范围，其余字段由调用方自行截断。
type ParticipantMetrics struct {
	// ParticipantID 被测参与者标识
	ParticipantID ParticipantID

	// NATTier NAT 可达性层级（0-4，越低越直连）
	NATTier NATTier

	// UploadKbps 测得的上行带宽（Kbps）
	UploadKbps uint32

	// RTTNanos 往返延迟估计（纳秒）
	RTTNanos uint32

	// STUNSuccessPct STUN 探测成功率（0-100）
	STUNSuccessPct uint8

	// PublicAddress 外部观测到的可达地址（主机名或 IP，最长 63 字节）
	PublicAddress string

	// PublicPort 外部观测到的可达端口
	PublicPort uint16

	// ConnectionType 当前连接类型
	ConnectionType ConnectionType

	// MeasuredAtNanos 采样时刻（Unix 纳秒）
	MeasuredAtNanos uint64

	// WindowNanos 采样窗口长度（纳秒）
	WindowNanos uint64
}

// Validate 校验模型不变量
//
// 只检查模型强制的字段范围；带宽、RTT 等字段不设上限。
func (m ParticipantMetrics) Validate() error {
	if !m.NATTier.Valid() {
		return fmt.Errorf("%w: %d", ErrNATTierOutOfRange, m.NATTier)
	}
	if m.STUNSuccessPct > 100 {
		return fmt.Errorf("%w: %d", ErrSTUNPctOutOfRange, m.STUNSuccessPct)
	}
	if len(m.PublicAddress) > MaxPublicAddressLen {
		return fmt.Errorf("%w: %d bytes", ErrPublicAddressTooLong, len(m.PublicAddress))
	}
	return nil
}

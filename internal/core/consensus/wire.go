package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-vchat/pkg/types"
)

// WireMetricsSize 单条指标记录的线上布局大小（字节）
//
// 布局为定长大端序，字段顺序固定：
//
//	偏移  大小  字段
//	  0    16  participant_id
//	 16     1  nat_tier
//	 17     4  upload_kbps
//	 21     4  rtt_ns
//	 25     1  stun_probe_success_pct
//	 26    64  public_address（NUL 填充，最长 63 字节有效）
//	 90     2  public_port
//	 92     1  connection_type
//	 93     8  measurement_time_ns
//	101     8  measurement_window_ns
const WireMetricsSize = 109

// wirePublicAddressSize public_address 字段的线上大小（含 NUL 终止符）
const wirePublicAddressSize = types.MaxPublicAddressLen + 1

// MarshalWireMetrics 将指标编码为 109 字节网络序记录
//
// 编码前校验字段范围；public_address 超过 63 字节时报错而非截断。
func MarshalWireMetrics(m types.ParticipantMetrics) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, WireMetricsSize)
	copy(buf[0:16], m.ParticipantID[:])
	buf[16] = byte(m.NATTier)
	binary.BigEndian.PutUint32(buf[17:21], m.UploadKbps)
	binary.BigEndian.PutUint32(buf[21:25], m.RTTNanos)
	buf[25] = m.STUNSuccessPct
	copy(buf[26:26+wirePublicAddressSize], m.PublicAddress)
	binary.BigEndian.PutUint16(buf[90:92], m.PublicPort)
	buf[92] = byte(m.ConnectionType)
	binary.BigEndian.PutUint64(buf[93:101], m.MeasuredAtNanos)
	binary.BigEndian.PutUint64(buf[101:109], m.WindowNanos)
	return buf, nil
}

// UnmarshalWireMetrics 从 109 字节网络序记录解码指标
//
// 与 MarshalWireMetrics 严格互逆：对任何合法指标，编码后解码得到
// 逐字段相等的值。单字节字段原样透传，不做语义校验（越界的 nat_tier
// 等由上层调用 Validate 过滤）。
func UnmarshalWireMetrics(data []byte) (types.ParticipantMetrics, error) {
	if len(data) < WireMetricsSize {
		return types.ParticipantMetrics{}, fmt.Errorf("%w: need %d bytes, got %d", ErrPacketTooShort, WireMetricsSize, len(data))
	}

	var m types.ParticipantMetrics
	copy(m.ParticipantID[:], data[0:16])
	m.NATTier = types.NATTier(data[16])
	m.UploadKbps = binary.BigEndian.Uint32(data[17:21])
	m.RTTNanos = binary.BigEndian.Uint32(data[21:25])
	m.STUNSuccessPct = data[25]
	m.PublicAddress = decodeWireAddress(data[26 : 26+wirePublicAddressSize])
	m.PublicPort = binary.BigEndian.Uint16(data[90:92])
	m.ConnectionType = types.ConnectionType(data[92])
	m.MeasuredAtNanos = binary.BigEndian.Uint64(data[93:101])
	m.WindowNanos = binary.BigEndian.Uint64(data[101:109])
	return m, nil
}

// decodeWireAddress 截断到首个 NUL
func decodeWireAddress(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

package consensus

import (
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-vchat/pkg/types"
)

// ============================================================================
//                              数据包类型
// ============================================================================

// PacketType 共识数据包类型标识（线上第一个字节）
type PacketType uint8

const (
	// PacketTypeCollectionStart Leader 发起收集
	PacketTypeCollectionStart PacketType = 1

	// PacketTypeStatsUpdate 参与者指标上报
	PacketTypeStatsUpdate PacketType = 2

	// PacketTypeElectionResult 选举结果通告
	PacketTypeElectionResult PacketType = 3
)

// String 返回类型名
func (t PacketType) String() string {
	switch t {
	case PacketTypeCollectionStart:
		return "CollectionStart"
	case PacketTypeStatsUpdate:
		return "StatsUpdate"
	case PacketTypeElectionResult:
		return "ElectionResult"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// maxMetricsPerPacket 单个 StatsUpdate 的指标条数上限（线上 uint8 计数）
const maxMetricsPerPacket = 255

// Packet 已解码的共识数据包
type Packet interface {
	// Type 返回数据包类型
	Type() PacketType

	// Encode 编码为网络序字节串
	Encode() ([]byte, error)
}

// ============================================================================
//                              CollectionStart
// ============================================================================

// CollectionStartPacket 收集开始通告
//
// 截止时间以 Unix 纳秒传输，所有参与者按同一墙钟截止。
type CollectionStartPacket struct {
	RoundID       types.RoundID
	DeadlineNanos uint64
}

const collectionStartSize = 1 + 4 + 8

// Type 实现 Packet 接口
func (p *CollectionStartPacket) Type() PacketType { return PacketTypeCollectionStart }

// Encode 实现 Packet 接口
func (p *CollectionStartPacket) Encode() ([]byte, error) {
	buf := make([]byte, collectionStartSize)
	buf[0] = byte(PacketTypeCollectionStart)
	binary.BigEndian.PutUint32(buf[1:5], uint32(p.RoundID))
	binary.BigEndian.PutUint64(buf[5:13], p.DeadlineNanos)
	return buf, nil
}

func decodeCollectionStart(data []byte) (*CollectionStartPacket, error) {
	if len(data) < collectionStartSize {
		return nil, fmt.Errorf("%w: collection start needs %d bytes, got %d", ErrPacketTooShort, collectionStartSize, len(data))
	}
	if len(data) > collectionStartSize {
		return nil, fmt.Errorf("%w: collection start carries %d extra bytes", ErrTrailingBytes, len(data)-collectionStartSize)
	}
	return &CollectionStartPacket{
		RoundID:       types.RoundID(binary.BigEndian.Uint32(data[1:5])),
		DeadlineNanos: binary.BigEndian.Uint64(data[5:13]),
	}, nil
}

// ============================================================================
//                              StatsUpdate
// ============================================================================

// StatsUpdatePacket 指标上报
//
// Metrics 通常只有发送方自己的一条记录，但编码支持批量转发。
type StatsUpdatePacket struct {
	SenderID types.ParticipantID
	Metrics  []types.ParticipantMetrics
}

const statsUpdateHeaderSize = 1 + 16 + 1

// Type 实现 Packet 接口
func (p *StatsUpdatePacket) Type() PacketType { return PacketTypeStatsUpdate }

// Encode 实现 Packet 接口
func (p *StatsUpdatePacket) Encode() ([]byte, error) {
	if p.SenderID.IsEmpty() {
		return nil, ErrEmptyID
	}
	if len(p.Metrics) > maxMetricsPerPacket {
		return nil, fmt.Errorf("consensus: %d metrics exceed packet limit %d", len(p.Metrics), maxMetricsPerPacket)
	}

	buf := make([]byte, statsUpdateHeaderSize, statsUpdateHeaderSize+len(p.Metrics)*WireMetricsSize)
	buf[0] = byte(PacketTypeStatsUpdate)
	copy(buf[1:17], p.SenderID[:])
	buf[17] = byte(len(p.Metrics))

	for _, m := range p.Metrics {
		record, err := MarshalWireMetrics(m)
		if err != nil {
			return nil, err
		}
		buf = append(buf, record...)
	}
	return buf, nil
}

func decodeStatsUpdate(data []byte) (*StatsUpdatePacket, error) {
	if len(data) < statsUpdateHeaderSize {
		return nil, fmt.Errorf("%w: stats update header needs %d bytes, got %d", ErrPacketTooShort, statsUpdateHeaderSize, len(data))
	}

	p := &StatsUpdatePacket{}
	copy(p.SenderID[:], data[1:17])
	count := int(data[17])

	want := statsUpdateHeaderSize + count*WireMetricsSize
	if len(data) < want {
		return nil, fmt.Errorf("%w: stats update with %d records needs %d bytes, got %d", ErrPacketTooShort, count, want, len(data))
	}
	if len(data) > want {
		return nil, fmt.Errorf("%w: stats update carries %d extra bytes", ErrTrailingBytes, len(data)-want)
	}

	p.Metrics = make([]types.ParticipantMetrics, 0, count)
	for i := 0; i < count; i++ {
		offset := statsUpdateHeaderSize + i*WireMetricsSize
		m, err := UnmarshalWireMetrics(data[offset : offset+WireMetricsSize])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p.Metrics = append(p.Metrics, m)
	}
	return p, nil
}

// ============================================================================
//                              ElectionResult
// ============================================================================

// ElectionResultPacket 选举结果通告
type ElectionResultPacket struct {
	HostID   types.ParticipantID
	BackupID types.ParticipantID
}

const electionResultSize = 1 + 16 + 16

// Type 实现 Packet 接口
func (p *ElectionResultPacket) Type() PacketType { return PacketTypeElectionResult }

// Encode 实现 Packet 接口
func (p *ElectionResultPacket) Encode() ([]byte, error) {
	if p.HostID.IsEmpty() || p.BackupID.IsEmpty() {
		return nil, ErrEmptyID
	}
	buf := make([]byte, electionResultSize)
	buf[0] = byte(PacketTypeElectionResult)
	copy(buf[1:17], p.HostID[:])
	copy(buf[17:33], p.BackupID[:])
	return buf, nil
}

func decodeElectionResult(data []byte) (*ElectionResultPacket, error) {
	if len(data) < electionResultSize {
		return nil, fmt.Errorf("%w: election result needs %d bytes, got %d", ErrPacketTooShort, electionResultSize, len(data))
	}
	if len(data) > electionResultSize {
		return nil, fmt.Errorf("%w: election result carries %d extra bytes", ErrTrailingBytes, len(data)-electionResultSize)
	}
	p := &ElectionResultPacket{}
	copy(p.HostID[:], data[1:17])
	copy(p.BackupID[:], data[17:33])
	return p, nil
}

// ============================================================================
//                              解码入口
// ============================================================================

// DecodePacket 按类型字节分发解码
func DecodePacket(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrPacketTooShort)
	}

	switch PacketType(data[0]) {
	case PacketTypeCollectionStart:
		return decodeCollectionStart(data)
	case PacketTypeStatsUpdate:
		return decodeStatsUpdate(data)
	case PacketTypeElectionResult:
		return decodeElectionResult(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacketType, data[0])
	}
}

// Package types 定义 go-vchat 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 vchat 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
package types

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// ============================================================================
//                              ParticipantID - 参与者标识
// ============================================================================

// ParticipantID 会话参与者唯一标识符
//
// 16 字节不透明标识（UUID 布局），由会话发现层在参与者加入时分配，
// 整个会话期间不可变。
//
// 外部表示格式：
//   - String(): 标准 UUID 格式（配置、诊断输出）
//   - ShortString(): 前 8 个十六进制字符（日志简短标识）
type ParticipantID [16]byte

// EmptyParticipantID 空参与者ID
var EmptyParticipantID ParticipantID

// ErrInvalidParticipantID 无效的参与者ID错误
var ErrInvalidParticipantID = errors.New("invalid participant ID")

// NewParticipantID 生成随机参与者ID（UUIDv4）
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.New())
}

// String 返回 ParticipantID 的 UUID 字符串表示
func (id ParticipantID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return uuid.UUID(id).String()
}

// ShortString 返回 ParticipantID 的短字符串表示
//
// 格式：前 8 个十六进制字符，用于日志中的简短标识。
func (id ParticipantID) ShortString() string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:4])
}

// Bytes 返回 ParticipantID 的字节切片
func (id ParticipantID) Bytes() []byte {
	return id[:]
}

// Equal 比较两个 ParticipantID 是否相等
func (id ParticipantID) Equal(other ParticipantID) bool {
	return id == other
}

// IsEmpty 检查 ParticipantID 是否为空
func (id ParticipantID) IsEmpty() bool {
	return id == EmptyParticipantID
}

// Less 按字节序比较，用于确定性排序（环内成员顺序、Leader 规则）
func (id ParticipantID) Less(other ParticipantID) bool {
	for i := 0; i < len(id); i++ {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// ParticipantIDFromBytes 从字节切片创建 ParticipantID
func ParticipantIDFromBytes(b []byte) (ParticipantID, error) {
	if len(b) != 16 {
		return EmptyParticipantID, ErrInvalidParticipantID
	}
	var id ParticipantID
	copy(id[:], b)
	return id, nil
}

// ParseParticipantID 从字符串解析 ParticipantID
//
// 仅支持标准 UUID 格式（用于用户输入和配置）。
//
// 示例：
//
//	id, err := ParseParticipantID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
func ParseParticipantID(s string) (ParticipantID, error) {
	if s == "" {
		return EmptyParticipantID, ErrInvalidParticipantID
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return EmptyParticipantID, ErrInvalidParticipantID
	}
	return ParticipantID(u), nil
}

// ============================================================================
//                              RoundID - 轮次标识
// ============================================================================

// RoundID 统计收集轮次标识符
//
// 由 Leader 在发起轮次时分配，单调递增。非 Leader 采用
// STATS_COLLECTION_START 中携带的值。
type RoundID uint32

// ============================================================================
//                              SessionID - 会话标识
// ============================================================================

// SessionID 会话标识符
// 由会话发现层分配，消费方仅透传
type SessionID string

// String 返回 SessionID 字符串
func (s SessionID) String() string {
	return string(s)
}

// IsEmpty 检查 SessionID 是否为空
func (s SessionID) IsEmpty() bool {
	return s == ""
}

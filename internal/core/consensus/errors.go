package consensus

import "errors"

// Sentinel errors
var (
	// 参数错误
	ErrNilTopology  = errors.New("consensus: topology is nil")
	ErrNilCollector = errors.New("consensus: metrics collector is nil")
	ErrEmptyID      = errors.New("consensus: participant ID is empty")

	// 状态错误
	ErrInvalidState = errors.New("consensus: invalid state for operation")

	// 选举错误
	ErrInsufficientMetrics = errors.New("consensus: need at least 2 metrics for election")
	ErrNoResult            = errors.New("consensus: no election result available")

	// 集合错误
	ErrIndexOutOfRange = errors.New("consensus: metric index out of range")

	// 数据包错误
	ErrPacketTooShort    = errors.New("consensus: packet too short")
	ErrUnknownPacketType = errors.New("consensus: unknown packet type")
	ErrTrailingBytes     = errors.New("consensus: trailing bytes after packet payload")

	// 服务错误
	ErrServiceClosed   = errors.New("consensus: service closed")
	ErrAlreadyStarted  = errors.New("consensus: service already started")
	ErrMissingCallback = errors.New("consensus: required callback missing")
)

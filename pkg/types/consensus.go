package types

import "time"

// ============================================================================
//                              ElectionResult - 选举结果
// ============================================================================

// ElectionResult 一轮共识选举的结果
//
// 每个完成的轮次恰好产生一次，被下一轮覆盖。
type ElectionResult struct {
	// HostID 当选的中继主机
	HostID ParticipantID

	// BackupID 备用主机（主机故障时的切换目标）
	BackupID ParticipantID

	// ElectedAt 选举完成的墙钟时间
	ElectedAt time.Time
}

// IsZero 检查是否为空结果
func (r ElectionResult) IsZero() bool {
	return r.HostID.IsEmpty() && r.BackupID.IsEmpty()
}

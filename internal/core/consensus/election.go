package consensus

import "github.com/dep2p/go-vchat/pkg/types"

// bandwidthCeilingKbps 评分公式中的带宽上限基准（1 Gbps）
const bandwidthCeilingKbps = 1_000_000.0

// scoreMetrics 计算参与者的中继适宜度评分，越低越好
//
// 评分 = rtt_ns/1000 + (1_000_000 - upload_kbps)/1000
//
// 即：RTT 以微秒计入，带宽以距 1 Gbps 的差距计入（上传超过 1 Gbps
// 时差值为负，进一步降低评分）。两项同量纲直接相加。
func scoreMetrics(m types.ParticipantMetrics) float64 {
	rttScore := float64(m.RTTNanos) / 1000.0
	bandwidthPenalty := (bandwidthCeilingKbps - float64(m.UploadKbps)) / 1000.0
	return rttScore + bandwidthPenalty
}

// chooseHosts 从至少两条指标中选出最佳与次佳的下标
//
// 确定性算法：先取前两条按评分排序作为初始 最佳/次佳，再从第三条起
// 逐条严格比较。只有严格更低的评分才能取代现任，因此评分完全相同时
// 先插入者获胜，所有参与者对同一输入序列得到相同结果。
//
// 调用方保证 len(entries) >= 2。
func chooseHosts(entries []types.ParticipantMetrics) (best, backup int) {
	best, backup = 0, 1
	bestScore := scoreMetrics(entries[0])
	backupScore := scoreMetrics(entries[1])
	if backupScore < bestScore {
		best, backup = backup, best
		bestScore, backupScore = backupScore, bestScore
	}

	for i := 2; i < len(entries); i++ {
		score := scoreMetrics(entries[i])
		switch {
		case score < bestScore:
			backup, backupScore = best, bestScore
			best, bestScore = i, score
		case score < backupScore:
			backup, backupScore = i, score
		}
	}
	return best, backup
}

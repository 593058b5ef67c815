// Package ring 实现会话成员的环拓扑
//
// 成员按 ID 字节序排列成环；最小 ID 为 Leader。排序规则是协议的一部分：
// 所有参与者对同一成员集合得到同一个环和同一个 Leader，无需额外协商。
package ring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dep2p/go-vchat/pkg/types"
)

// MaxMembers 环内成员数上限
const MaxMembers = 64

// Sentinel errors
var (
	ErrNoMembers      = errors.New("ring: member list is empty")
	ErrTooManyMembers = errors.New("ring: too many members")
	ErrNotMember      = errors.New("ring: participant not in ring")
)

// Ring 不可变的环拓扑
//
// 实现 interfaces.Topology。成员变化时创建新 Ring 整体替换，
// 因此值可以在多个 goroutine 间只读共享。
type Ring struct {
	myID    types.ParticipantID
	members []types.ParticipantID
}

// New 从成员集合构建环
//
// 去重、按 ID 字节序排序；myID 不在集合中时自动加入。
// 成员数超过 MaxMembers 时报错。
func New(myID types.ParticipantID, members []types.ParticipantID) (*Ring, error) {
	if myID.IsEmpty() {
		return nil, types.ErrInvalidParticipantID
	}

	seen := make(map[types.ParticipantID]struct{}, len(members)+1)
	sorted := make([]types.ParticipantID, 0, len(members)+1)
	for _, id := range members {
		if id.IsEmpty() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	if _, ok := seen[myID]; !ok {
		sorted = append(sorted, myID)
	}

	if len(sorted) == 0 {
		return nil, ErrNoMembers
	}
	if len(sorted) > MaxMembers {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyMembers, len(sorted), MaxMembers)
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})

	return &Ring{myID: myID, members: sorted}, nil
}

// AmLeader 检查本参与者是否为 Leader
func (r *Ring) AmLeader() bool {
	return r.members[0] == r.myID
}

// Leader 返回 Leader（环中最小 ID）
func (r *Ring) Leader() types.ParticipantID {
	return r.members[0]
}

// Members 按环序返回全部成员的副本
func (r *Ring) Members() []types.ParticipantID {
	out := make([]types.ParticipantID, len(r.members))
	copy(out, r.members)
	return out
}

// Successor 返回给定成员在环中的后继
//
// 最后一个成员的后继绕回第一个。成员不在环内时第二个返回值为 false。
func (r *Ring) Successor(id types.ParticipantID) (types.ParticipantID, bool) {
	for i, member := range r.members {
		if member == id {
			return r.members[(i+1)%len(r.members)], true
		}
	}
	return types.EmptyParticipantID, false
}

// Contains 检查成员是否在环内
func (r *Ring) Contains(id types.ParticipantID) bool {
	for _, member := range r.members {
		if member == id {
			return true
		}
	}
	return false
}

// Size 返回环内成员数
func (r *Ring) Size() int {
	return len(r.members)
}

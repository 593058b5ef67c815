package consensus

import (
	"context"
	"sync"

	"github.com/dep2p/go-vchat/pkg/types"
)

// testID 构造确定性的参与者 ID，n 作为最后一个字节
func testID(n byte) types.ParticipantID {
	var id types.ParticipantID
	id[15] = n
	id[0] = 0x10
	return id
}

// testMetric 构造一条合法指标
func testMetric(id types.ParticipantID, rttNanos, uploadKbps uint32) types.ParticipantMetrics {
	return types.ParticipantMetrics{
		ParticipantID:   id,
		NATTier:         types.NATTierSTUN,
		UploadKbps:      uploadKbps,
		RTTNanos:        rttNanos,
		STUNSuccessPct:  90,
		PublicAddress:   "203.0.113.7",
		PublicPort:      3478,
		ConnectionType:  types.ConnectionSTUN,
		MeasuredAtNanos: 1_700_000_000_000_000_000,
		WindowNanos:     5_000_000_000,
	}
}

// fakeTopology 测试用环拓扑
type fakeTopology struct {
	members []types.ParticipantID
	self    types.ParticipantID
}

func newFakeTopology(self types.ParticipantID, members ...types.ParticipantID) *fakeTopology {
	return &fakeTopology{members: members, self: self}
}

func (t *fakeTopology) AmLeader() bool                 { return len(t.members) > 0 && t.members[0] == t.self }
func (t *fakeTopology) Leader() types.ParticipantID    { return t.members[0] }
func (t *fakeTopology) Members() []types.ParticipantID { return t.members }
func (t *fakeTopology) Size() int                      { return len(t.members) }

func (t *fakeTopology) Contains(id types.ParticipantID) bool {
	for _, m := range t.members {
		if m == id {
			return true
		}
	}
	return false
}

func (t *fakeTopology) Successor(id types.ParticipantID) (types.ParticipantID, bool) {
	for i, m := range t.members {
		if m == id {
			return t.members[(i+1)%len(t.members)], true
		}
	}
	return types.EmptyParticipantID, false
}

// fakeCollector 测试用测量器，返回固定指标
type fakeCollector struct {
	metric types.ParticipantMetrics
	err    error
}

func (c *fakeCollector) Measure(_ context.Context, id types.ParticipantID) (types.ParticipantMetrics, error) {
	if c.err != nil {
		return types.ParticipantMetrics{}, c.err
	}
	m := c.metric
	m.ParticipantID = id
	return m, nil
}

// sentPacket 记录一次发送
type sentPacket struct {
	next types.ParticipantID
	data []byte
}

// fakeSender 测试用发送回调，记录所有出站数据包
type fakeSender struct {
	mu      sync.Mutex
	packets []sentPacket
	ch      chan sentPacket
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan sentPacket, 64)}
}

func (s *fakeSender) send(next types.ParticipantID, data []byte) error {
	s.mu.Lock()
	s.packets = append(s.packets, sentPacket{next: next, data: append([]byte(nil), data...)})
	s.mu.Unlock()
	s.ch <- sentPacket{next: next, data: append([]byte(nil), data...)}
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

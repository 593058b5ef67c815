package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/pkg/types"
)

func testConsensusConfig() config.ConsensusConfig {
	return config.ConsensusConfig{
		RoundInterval:    config.Duration(5 * time.Minute),
		CollectionWindow: config.Duration(30 * time.Second),
		MinParticipants:  2,
		MetricsCapacity:  10,
	}
}

// newTestCoordinator 构造 Leader 协调器和受控时钟
func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *clock.Mock) {
	t.Helper()
	self := testID(1)
	mock := clock.NewMock()
	opts = append([]Option{WithClock(mock)}, opts...)

	coord, err := NewCoordinator(
		self,
		newFakeTopology(self, self, testID(2), testID(3)),
		&fakeCollector{metric: testMetric(self, 10_000, 80_000)},
		testConsensusConfig(),
		opts...,
	)
	require.NoError(t, err)
	return coord, mock
}

func TestNewCoordinator_Validation(t *testing.T) {
	self := testID(1)
	topo := newFakeTopology(self, self)
	collector := &fakeCollector{metric: testMetric(self, 1000, 1000)}
	cfg := testConsensusConfig()

	_, err := NewCoordinator(types.EmptyParticipantID, topo, collector, cfg)
	assert.ErrorIs(t, err, ErrEmptyID)

	_, err = NewCoordinator(self, nil, collector, cfg)
	assert.ErrorIs(t, err, ErrNilTopology)

	_, err = NewCoordinator(self, topo, nil, cfg)
	assert.ErrorIs(t, err, ErrNilCollector)
}

func TestCoordinator_FirstRoundAfterFullInterval(t *testing.T) {
	coord, mock := newTestCoordinator(t)
	ctx := context.Background()

	// 间隔未满不发起
	mock.Add(4 * time.Minute)
	require.NoError(t, coord.Process(ctx))
	assert.Equal(t, StateIdle, coord.State())

	mock.Add(time.Minute)
	require.NoError(t, coord.Process(ctx))
	assert.Equal(t, StateCollecting, coord.State())
	assert.Equal(t, types.RoundID(1), coord.CurrentRound())
	assert.Equal(t, mock.Now().Add(30*time.Second), coord.CollectionDeadline())
	// 自身指标已登记
	assert.Equal(t, 1, coord.MetricsCount())
}

func TestCoordinator_FollowerNeverStartsRounds(t *testing.T) {
	self := testID(2)
	mock := clock.NewMock()
	coord, err := NewCoordinator(
		self,
		newFakeTopology(self, testID(1), self, testID(3)),
		&fakeCollector{metric: testMetric(self, 1000, 1000)},
		testConsensusConfig(),
		WithClock(mock),
	)
	require.NoError(t, err)

	mock.Add(time.Hour)
	require.NoError(t, coord.Process(context.Background()))
	assert.Equal(t, StateIdle, coord.State())
	assert.Equal(t, types.RoundID(0), coord.CurrentRound())
}

func TestCoordinator_FullRound(t *testing.T) {
	var observed []types.ElectionResult
	coord, mock := newTestCoordinator(t, WithObserver(func(r types.ElectionResult) error {
		observed = append(observed, r)
		return nil
	}))
	ctx := context.Background()

	mock.Add(5 * time.Minute)
	require.NoError(t, coord.Process(ctx))
	require.Equal(t, StateCollecting, coord.State())

	// 参与者 2 和 3 的指标到达；3 的评分更优
	require.NoError(t, coord.OnStatsUpdate(testID(2), []types.ParticipantMetrics{
		testMetric(testID(2), 50_000, 20_000),
	}))
	require.NoError(t, coord.OnStatsUpdate(testID(3), []types.ParticipantMetrics{
		testMetric(testID(3), 5_000, 90_000),
	}))
	assert.Equal(t, 3, coord.MetricsCount())

	// 窗口未到不结算
	mock.Add(29 * time.Second)
	require.NoError(t, coord.Process(ctx))
	assert.Equal(t, StateCollecting, coord.State())

	mock.Add(time.Second)
	require.NoError(t, coord.Process(ctx))
	assert.Equal(t, StateElectionComplete, coord.State())

	require.Len(t, observed, 1)
	assert.Equal(t, testID(3), observed[0].HostID)
	assert.Equal(t, testID(1), observed[0].BackupID)

	result, err := coord.CurrentHost()
	require.NoError(t, err)
	assert.Equal(t, testID(3), result.HostID)

	// 结果确认后归位，结果仍可查询
	require.NoError(t, coord.OnElectionResult(observed[0].HostID, observed[0].BackupID))
	assert.Equal(t, StateIdle, coord.State())
	result, err = coord.CurrentHost()
	require.NoError(t, err)
	assert.Equal(t, testID(3), result.HostID)
}

func TestCoordinator_InsufficientMetricsAbandonsRound(t *testing.T) {
	self := testID(1)
	mock := clock.NewMock()
	// 自身测量失败，本轮只会有远端指标
	coord, err := NewCoordinator(
		self,
		newFakeTopology(self, self, testID(2)),
		&fakeCollector{err: errors.New("probe down")},
		testConsensusConfig(),
		WithClock(mock),
	)
	require.NoError(t, err)
	ctx := context.Background()

	mock.Add(5 * time.Minute)
	require.NoError(t, coord.Process(ctx))
	require.Equal(t, StateCollecting, coord.State())
	assert.Equal(t, 0, coord.MetricsCount())

	require.NoError(t, coord.OnStatsUpdate(testID(2), []types.ParticipantMetrics{
		testMetric(testID(2), 1000, 1000),
	}))

	mock.Add(30 * time.Second)
	require.NoError(t, coord.Process(ctx))
	// 指标不足，放弃本轮回到 Idle
	assert.Equal(t, StateIdle, coord.State())

	_, err = coord.CurrentHost()
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestCoordinator_OnCollectionStart(t *testing.T) {
	self := testID(2)
	mock := clock.NewMock()
	coord, err := NewCoordinator(
		self,
		newFakeTopology(self, testID(1), self),
		&fakeCollector{metric: testMetric(self, 1000, 1000)},
		testConsensusConfig(),
		WithClock(mock),
	)
	require.NoError(t, err)
	ctx := context.Background()

	deadline := mock.Now().Add(30 * time.Second)
	require.NoError(t, coord.OnCollectionStart(ctx, 7, deadline))
	assert.Equal(t, StateCollecting, coord.State())
	assert.Equal(t, types.RoundID(7), coord.CurrentRound())
	assert.Equal(t, deadline, coord.CollectionDeadline())
	assert.Equal(t, 1, coord.MetricsCount())

	// 收集中重复通知被拒
	err = coord.OnCollectionStart(ctx, 8, deadline)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, types.RoundID(7), coord.CurrentRound())
}

func TestCoordinator_OnStatsUpdate_InvalidEntriesSkipped(t *testing.T) {
	coord, mock := newTestCoordinator(t)
	ctx := context.Background()

	mock.Add(5 * time.Minute)
	require.NoError(t, coord.Process(ctx))

	bad := testMetric(testID(9), 1000, 1000)
	bad.NATTier = 9
	good := testMetric(testID(2), 1000, 1000)

	require.NoError(t, coord.OnStatsUpdate(testID(2), []types.ParticipantMetrics{bad, good}))
	// 自身 + good，bad 被跳过
	assert.Equal(t, 2, coord.MetricsCount())
}

func TestCoordinator_OnStatsUpdate_RequiresCollecting(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	err := coord.OnStatsUpdate(testID(2), []types.ParticipantMetrics{
		testMetric(testID(2), 1000, 1000),
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCoordinator_OnElectionResult_StoresFallback(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	// Idle 下收到结果：无条件存为兜底
	require.NoError(t, coord.OnElectionResult(testID(5), testID(6)))
	assert.Equal(t, StateIdle, coord.State())

	result, err := coord.CurrentHost()
	require.NoError(t, err)
	assert.Equal(t, testID(5), result.HostID)
	assert.Equal(t, testID(6), result.BackupID)

	assert.ErrorIs(t, coord.OnElectionResult(types.EmptyParticipantID, testID(6)), ErrEmptyID)
}

func TestCoordinator_TopologyChangeAbandonsRound(t *testing.T) {
	coord, mock := newTestCoordinator(t)
	ctx := context.Background()

	mock.Add(5 * time.Minute)
	require.NoError(t, coord.Process(ctx))
	require.Equal(t, StateCollecting, coord.State())
	require.NotZero(t, coord.MetricsCount())

	self := testID(1)
	require.NoError(t, coord.OnRingMembersChanged(newFakeTopology(self, self, testID(4))))
	assert.Equal(t, StateIdle, coord.State())
	assert.Equal(t, 0, coord.MetricsCount())

	assert.ErrorIs(t, coord.OnRingMembersChanged(nil), ErrNilTopology)
}

func TestCoordinator_TimeUntilNextRound(t *testing.T) {
	coord, mock := newTestCoordinator(t)

	assert.Equal(t, 5*time.Minute, coord.TimeUntilNextRound())

	mock.Add(2 * time.Minute)
	assert.Equal(t, 3*time.Minute, coord.TimeUntilNextRound())

	mock.Add(10 * time.Minute)
	assert.Equal(t, time.Duration(0), coord.TimeUntilNextRound())
}

func TestCoordinator_RoundIDsIncrease(t *testing.T) {
	coord, mock := newTestCoordinator(t)
	ctx := context.Background()

	runRound := func() {
		mock.Add(5 * time.Minute)
		require.NoError(t, coord.Process(ctx))
		require.Equal(t, StateCollecting, coord.State())
		require.NoError(t, coord.OnStatsUpdate(testID(2), []types.ParticipantMetrics{
			testMetric(testID(2), 50_000, 20_000),
		}))
		mock.Add(30 * time.Second)
		require.NoError(t, coord.Process(ctx))
		require.Equal(t, StateElectionComplete, coord.State())
		result, err := coord.CurrentHost()
		require.NoError(t, err)
		require.NoError(t, coord.OnElectionResult(result.HostID, result.BackupID))
	}

	runRound()
	assert.Equal(t, types.RoundID(1), coord.CurrentRound())
	runRound()
	assert.Equal(t, types.RoundID(2), coord.CurrentRound())
}

package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ============================================================================
//                              默认值
// ============================================================================

const (
	// DefaultRoundInterval 两次选举轮次之间的默认间隔
	DefaultRoundInterval = 5 * time.Minute

	// DefaultCollectionWindow 单轮统计收集的默认窗口
	DefaultCollectionWindow = 30 * time.Second

	// DefaultMinParticipants 选举所需的最少指标数
	//
	// 少于 2 份指标无法产生 主机/备用主机 对。
	DefaultMinParticipants = 2

	// DefaultMetricsCapacity 指标集合的初始容量
	DefaultMetricsCapacity = 10

	// DefaultProbeTimeout 单次 STUN 探测超时
	DefaultProbeTimeout = 3 * time.Second

	// DefaultProbeCount 每轮测量发送的 STUN 探测数
	DefaultProbeCount = 10
)

// ============================================================================
//                              Config - 根配置
// ============================================================================

// Config go-vchat 根配置
type Config struct {
	// Consensus 共识协调器配置
	Consensus ConsensusConfig `yaml:"consensus"`

	// Probe 网络质量探测配置
	Probe ProbeConfig `yaml:"probe"`
}

// ConsensusConfig 共识协调器配置
type ConsensusConfig struct {
	// RoundInterval 轮次间隔（默认 5 分钟）
	RoundInterval Duration `yaml:"round_interval"`

	// CollectionWindow 收集窗口（默认 30 秒）
	CollectionWindow Duration `yaml:"collection_window"`

	// MinParticipants 选举所需最少指标数（默认 2）
	MinParticipants int `yaml:"min_participants"`

	// MetricsCapacity 指标集合初始容量（默认 10）
	MetricsCapacity int `yaml:"metrics_capacity"`
}

// ProbeConfig 网络质量探测配置
type ProbeConfig struct {
	// STUNServers STUN 服务器地址列表（host:port）
	//
	// 为空时使用静态兜底测量（无探测基础设施的会话仍可选举）。
	STUNServers []string `yaml:"stun_servers"`

	// Timeout 单次探测超时（默认 3 秒）
	Timeout Duration `yaml:"timeout"`

	// ProbeCount 每轮测量的探测数（默认 10）
	ProbeCount int `yaml:"probe_count"`
}

// ============================================================================
//                              构造与加载
// ============================================================================

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			RoundInterval:    Duration(DefaultRoundInterval),
			CollectionWindow: Duration(DefaultCollectionWindow),
			MinParticipants:  DefaultMinParticipants,
			MetricsCapacity:  DefaultMetricsCapacity,
		},
		Probe: ProbeConfig{
			Timeout:    Duration(DefaultProbeTimeout),
			ProbeCount: DefaultProbeCount,
		},
	}
}

// Load 从 YAML 文件加载配置
//
// 文件中未出现的字段保持默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ============================================================================
//                              校验
// ============================================================================

// Validate 校验配置，聚合所有字段错误后一次性返回
func (c *Config) Validate() error {
	var errs error

	if c.Consensus.RoundInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("consensus.round_interval must be positive, got %s", c.Consensus.RoundInterval))
	}
	if c.Consensus.CollectionWindow <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("consensus.collection_window must be positive, got %s", c.Consensus.CollectionWindow))
	}
	if c.Consensus.CollectionWindow.Duration() >= c.Consensus.RoundInterval.Duration() {
		errs = multierr.Append(errs, fmt.Errorf("consensus.collection_window (%s) must be shorter than round_interval (%s)",
			c.Consensus.CollectionWindow, c.Consensus.RoundInterval))
	}
	if c.Consensus.MinParticipants < 2 {
		errs = multierr.Append(errs, fmt.Errorf("consensus.min_participants must be at least 2, got %d", c.Consensus.MinParticipants))
	}
	if c.Consensus.MetricsCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("consensus.metrics_capacity must be positive, got %d", c.Consensus.MetricsCapacity))
	}
	if c.Probe.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout))
	}
	if c.Probe.ProbeCount <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("probe.probe_count must be positive, got %d", c.Probe.ProbeCount))
	}

	return errs
}

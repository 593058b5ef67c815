package consensus

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/internal/util/logger"
	"github.com/dep2p/go-vchat/pkg/interfaces"
	"github.com/dep2p/go-vchat/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("consensus")

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置
	Config *config.Config

	// MyID 本参与者标识
	MyID types.ParticipantID `name:"participant-id"`

	// Topology 环拓扑
	Topology interfaces.Topology

	// Collector 本地网络质量测量器
	Collector interfaces.MetricsCollector

	// Sender 数据包发送回调（由接入模式提供）
	Sender interfaces.PacketSender

	// Observer 选举完成回调（可选）
	Observer interfaces.ElectionObserver `optional:"true"`

	// Registerer Prometheus 注册器（可选）
	Registerer prometheus.Registerer `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// ConsensusService 共识服务
	ConsensusService *Service `name:"consensus"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	opts := []ServiceOption{}
	if input.Observer != nil {
		opts = append(opts, WithElectionCallback(input.Observer))
	}
	if input.Registerer != nil {
		opts = append(opts, WithMetricsRegisterer(input.Registerer))
	}

	service, err := NewService(
		input.MyID,
		input.Topology,
		input.Collector,
		input.Sender,
		input.Config.Consensus,
		opts...,
	)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		ConsensusService: service,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("consensus",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC               fx.Lifecycle
	ConsensusService *Service `name:"consensus"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("共识模块启动")
			return input.ConsensusService.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			log.Info("共识模块停止")
			return input.ConsensusService.Stop()
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "consensus"
	// Description 模块描述
	Description = "环共识模块，提供中继主机选举的轮次调度、指标收集与结果通告能力"
)

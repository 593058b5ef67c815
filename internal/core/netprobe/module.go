package netprobe

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-vchat/internal/config"
	"github.com/dep2p/go-vchat/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置
	Config *config.Config
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Collector 网络质量测量器
	Collector interfaces.MetricsCollector
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	return ModuleOutput{
		Collector: NewProber(input.Config.Probe),
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("netprobe",
		fx.Provide(ProvideServices),
	)
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "netprobe"
	// Description 模块描述
	Description = "网络质量探测模块，提供 STUN 探测、NAT 层级推导与指标测量能力"
)

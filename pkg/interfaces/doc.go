// Package interfaces 定义 go-vchat 的公共接口
//
// 采用扁平命名（无层级前缀），一个接口文件对应一个消费方子系统：
//
//   - consensus.go      - 共识核心消费的协作方接口
//     （Topology 环拓扑、MetricsCollector 测量器、传输与通知回调）
//
// 接口只描述能力，不绑定实现：共识协调器借用这些实现而不拥有其
// 生命周期，具体实现位于 internal/core/ 下的对应子系统。
package interfaces

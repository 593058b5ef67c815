// Package consensus 实现环共识协议的核心
//
// 会话参与者在没有预置服务器的情况下，通过本协议就 中继主机/备用主机
// 达成一致，并随网络状况变化周期性重选。协议由 Leader 发起轮次：
//
//  1. Leader 广播 STATS_COLLECTION_START，携带轮次 ID 和收集截止时间
//  2. 每个参与者测量本地网络质量，通过 STATS_UPDATE 沿环转发
//  3. 截止时间到达后 Leader 以确定性评分算法计算 主机/备用主机
//  4. Leader 广播 ELECTION_RESULT，所有参与者回到空闲状态
//
// 包内分层：
//   - Collection / wire codec: 指标容器与 109 字节定长网络序编码
//   - StateMachine: 单轮状态机（Idle → Collecting → … → Idle）
//   - Coordinator: 轮次调度、截止处理、入站协议事件（自带互斥锁）
//   - Service: 单属主事件循环 + 数据包编解码 + 传输/选举回调
//
// 容错语义：慢的或失联的参与者不贡献指标，轮次在截止时间用已到达的
// 指标继续（至少 2 份）；网络分区下不保证全局一致，采用"最后一次
// 选举结果生效"。参与者假定诚实但不可靠。
package consensus

package netprobe

import (
	"net"

	"github.com/dep2p/go-vchat/pkg/types"
)

// classifyTier 根据映射地址推导 NAT 层级
//
// 单端口 Binding 探测能区分的层级有限：
//   - 映射地址是私网地址 → 双方同在局域网（LAN）
//   - 映射地址等于本机出口地址 → 直接公网可达（Public）
//   - 其余有响应的情况 → 在 NAT 后但 STUN 可穿透（STUN）
//
// UPnP 层级需要网关协商，由端口映射子系统单独上报；全部探测失败
// 的情况由调用方直接判为 TURN。
func classifyTier(mapped *net.UDPAddr, local net.IP) types.NATTier {
	if mapped == nil {
		return types.NATTierTURN
	}
	if mapped.IP.IsPrivate() || mapped.IP.IsLoopback() {
		return types.NATTierLAN
	}
	if local != nil && mapped.IP.Equal(local) {
		return types.NATTierPublic
	}
	return types.NATTierSTUN
}

// connectionTypeFor NAT 层级对应的默认连接类型
func connectionTypeFor(tier types.NATTier) types.ConnectionType {
	switch tier {
	case types.NATTierLAN, types.NATTierPublic:
		return types.ConnectionDirect
	case types.NATTierUPnP:
		return types.ConnectionUPnP
	case types.NATTierSTUN:
		return types.ConnectionSTUN
	default:
		return types.ConnectionTURN
	}
}

// outboundIP 获取本机默认出口 IP
//
// 只建立 UDP "连接" 查路由表，不产生网络流量。失败返回 nil。
func outboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP
}

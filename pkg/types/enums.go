package types

// ============================================================================
//                              NATTier - NAT 层级
// ============================================================================

// NATTier NAT 可达性层级
//
// 0-4 的粗粒度分类，数值越低越容易被直连。
// 由 netprobe 模块测量得出，参与主机选举评分的旁路诊断。
type NATTier uint8

const (
	// NATTierLAN 同局域网 / 无 NAT
	NATTierLAN NATTier = 0
	// NATTierPublic 公网直接可达
	NATTierPublic NATTier = 1
	// NATTierUPnP 通过 UPnP/NAT-PMP 端口映射可达
	NATTierUPnP NATTier = 2
	// NATTierSTUN 通过 STUN 打洞可达
	NATTierSTUN NATTier = 3
	// NATTierTURN 仅能经中继（TURN）到达
	NATTierTURN NATTier = 4
)

// Valid 检查层级是否在合法范围内（0-4）
func (t NATTier) Valid() bool {
	return t <= NATTierTURN
}

// String 返回 NAT 层级的字符串表示
func (t NATTier) String() string {
	switch t {
	case NATTierLAN:
		return "lan"
	case NATTierPublic:
		return "public"
	case NATTierUPnP:
		return "upnp"
	case NATTierSTUN:
		return "stun"
	case NATTierTURN:
		return "turn"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ConnectionType - 连接类型
// ============================================================================

// ConnectionType 参与者当前媒体连接类型
type ConnectionType uint8

const (
	// ConnectionDirect 直连
	ConnectionDirect ConnectionType = iota
	// ConnectionUPnP 经 UPnP 端口映射
	ConnectionUPnP
	// ConnectionSTUN 经 STUN 打洞
	ConnectionSTUN
	// ConnectionTURN 经 TURN 中继
	ConnectionTURN
)

// String 返回连接类型的字符串表示
func (c ConnectionType) String() string {
	switch c {
	case ConnectionDirect:
		return "direct"
	case ConnectionUPnP:
		return "upnp"
	case ConnectionSTUN:
		return "stun"
	case ConnectionTURN:
		return "turn"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Reachability - 可达性
// ============================================================================

// Reachability 网络可达性状态
type Reachability int

const (
	// ReachabilityUnknown 未知
	ReachabilityUnknown Reachability = iota
	// ReachabilityPublic 公网可达
	ReachabilityPublic
	// ReachabilityPrivate 仅私网可达
	ReachabilityPrivate
)

// String 返回可达性状态的字符串表示
func (r Reachability) String() string {
	switch r {
	case ReachabilityPublic:
		return "public"
	case ReachabilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

package domain

// ConnectivityStatus is one axis of gateway health.
type ConnectivityStatus int

const (
	Disconnected ConnectivityStatus = iota
	Connected
)

func (s ConnectivityStatus) String() string {
	if s == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// GatewayType identifies which asynchronous channel a connectivity
// transition belongs to.
type GatewayType int

const (
	GatewayTypeMarketData GatewayType = iota
	GatewayTypeOrderEntry
)

func (t GatewayType) String() string {
	if t == GatewayTypeOrderEntry {
		return "OrderEntry"
	}
	return "MarketData"
}

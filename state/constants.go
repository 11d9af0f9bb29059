package state

import "time"

const (
	// INF is the distance vector cost that represents an unreachable destination.
	INF = uint32(16)
)

var (
	DefaultTimeUnit = time.Millisecond * 100 // real time represented by one scaled unit
	HeartbeatUnits  = 10.0                   // periodic full-table advertisement interval
	MaxHops         = 64                     // trace probes that traverse more hops are dropped
	// ProbeExpiryUnits is measured in client send intervals. A probe that has not
	// been delivered after this long is reported as unreachable.
	ProbeExpiryUnits = 3.0
	// FinalRoundUnits is measured in client send intervals, the time the final
	// probe round is given to settle before the summary is taken.
	FinalRoundUnits = 4.0
	DispatchBuffer  = 1024
	EventBuffer     = 1024
	MinTick         = time.Millisecond
	// DebugAddr serves expvars and metrics when debugging is enabled without an address.
	DebugAddr = "0.0.0.0:6060"
)

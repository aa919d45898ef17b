package substrate

import "github.com/ethereum/go-ethereum/metrics"

var (
	rpcRequestsTotal = metrics.NewRegisteredCounter("substrate/rpc/requests/total", nil)
	rpcErrorsTotal   = metrics.NewRegisteredCounter("substrate/rpc/errors/total", nil)
	rpcLatency       = metrics.NewRegisteredResettingTimer("substrate/rpc/latency", nil)
	rpcThrottleWait  = metrics.NewRegisteredResettingTimer("substrate/rpc/throttle", nil)
)

// RequestCount returns the number of RPC requests issued by all clients.
func RequestCount() int64 {
	return rpcRequestsTotal.Snapshot().Count()
}

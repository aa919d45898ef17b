package smoke

import "github.com/ethereum/go-ethereum/metrics"

var (
	scanKeysTotal      = metrics.NewRegisteredCounter("smoke/codesize/keys/total", nil)
	scanCheckedTotal   = metrics.NewRegisteredCounter("smoke/codesize/checked/total", nil)
	scanOversizedTotal = metrics.NewRegisteredCounter("smoke/codesize/oversized/total", nil)
	scanLargestCode    = metrics.NewRegisteredGauge("smoke/codesize/largest/bytes", nil)
	scanPhaseDuration  = metrics.NewRegisteredResettingTimer("smoke/codesize/phase/duration", nil)
)

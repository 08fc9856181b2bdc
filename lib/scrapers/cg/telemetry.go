package cg

import (
	"hwnotifier/lib/restyutil"
	"hwnotifier/lib/telemetry"
)

var tracer = telemetry.Tracer("hwnotifier.lib.scrapers.cg")
var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput makes every client created afterwards dump its
// http messages to `out`.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}

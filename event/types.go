package event

// Event type strings, used verbatim as handler-registry keys. Per-entity
// dispatch is encoded by concatenating the base type with a composite id,
// e.g. EventOrder + "AAPL.PAPER000001".
const (
	EventTick     = "eTick"
	EventBar      = "eBar"
	EventOrder    = "eOrder"
	EventTrade    = "eTrade"
	EventPosition = "ePosition"
	EventAccount  = "eAccount"
	EventLog      = "eLog"
	EventTimer    = "eTimer"
	EventSignal   = "eSignal"

	// stopSentinelType is the reserved shutdown sentinel. It is never
	// delivered to a handler — the dispatcher treats it as an exit signal.
	stopSentinelType = "_stop_"
)

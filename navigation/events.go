package navigation

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventOpen           observability.EventType = "navigation.open"
	EventReopen         observability.EventType = "navigation.reopen"
	EventNavigateFailed observability.EventType = "navigation.navigate.failed"
	EventAbandoned      observability.EventType = "navigation.correlation.abandoned"
	EventReturn         observability.EventType = "navigation.return"
	EventReturnFailed   observability.EventType = "navigation.return.failed"
	EventReset          observability.EventType = "navigation.reset"
)

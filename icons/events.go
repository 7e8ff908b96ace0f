package icons

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventBatchStart    observability.EventType = "icons.batch.start"
	EventBatchComplete observability.EventType = "icons.batch.complete"
	EventLoadFailed    observability.EventType = "icons.load.failed"
)

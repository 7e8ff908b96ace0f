package loop

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventStart     observability.EventType = "loop.start"
	EventStop      observability.EventType = "loop.stop"
	EventTaskPanic observability.EventType = "loop.task.panic"
)

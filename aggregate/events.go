package aggregate

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventJobCreate   observability.EventType = "aggregate.job.create"
	EventJobComplete observability.EventType = "aggregate.job.complete"
	EventJobSurplus  observability.EventType = "aggregate.job.surplus"
)

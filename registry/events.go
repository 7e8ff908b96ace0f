package registry

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventSubscribe          observability.EventType = "registry.subscribe"
	EventUnsubscribe        observability.EventType = "registry.unsubscribe"
	EventChannelSubscribe   observability.EventType = "registry.channel.subscribe"
	EventDispatch           observability.EventType = "registry.dispatch"
	EventSelectionDiscarded observability.EventType = "registry.selection.discarded"
	EventSelectionDropped   observability.EventType = "registry.selection.dropped"
	EventHandlerFailed      observability.EventType = "registry.handler.failed"
	EventProposalFailed     observability.EventType = "registry.proposal.failed"
)

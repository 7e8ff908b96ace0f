package bridge

import "github.com/tailored-agentic-units/drawbridge/observability"

// Bridge event types emitted across the bridge lifecycle.
const (
	EventStart           observability.EventType = "bridge.start"
	EventShellWaiting    observability.EventType = "bridge.shell.waiting"
	EventShellReady      observability.EventType = "bridge.shell.ready"
	EventCatalogFailed   observability.EventType = "bridge.catalog.failed"
	EventCatalogComplete observability.EventType = "bridge.catalog.complete"
	EventProposalFailed  observability.EventType = "bridge.proposal.failed"
	EventOpenFailed      observability.EventType = "bridge.open.failed"
	EventDropped         observability.EventType = "bridge.event.dropped"
	EventClose           observability.EventType = "bridge.close"
)

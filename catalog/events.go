package catalog

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventScanStart    observability.EventType = "catalog.scan.start"
	EventScanComplete observability.EventType = "catalog.scan.complete"
	EventTileSkipped  observability.EventType = "catalog.tile.skipped"
	EventTileIgnored  observability.EventType = "catalog.tile.ignored"
	EventSubmit       observability.EventType = "catalog.submit"
	EventSubmitEmpty  observability.EventType = "catalog.submit.empty"
	EventSubmitFailed observability.EventType = "catalog.submit.failed"
)

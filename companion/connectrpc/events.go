package connectrpc

import "github.com/tailored-agentic-units/drawbridge/observability"

const (
	EventStreamOpen   observability.EventType = "connectrpc.stream.open"
	EventStreamEnded  observability.EventType = "connectrpc.stream.ended"
	EventStreamClosed observability.EventType = "connectrpc.stream.closed"
	EventDecodeFailed observability.EventType = "connectrpc.decode.failed"
)

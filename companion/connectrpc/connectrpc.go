// Package connectrpc carries the companion Channel over Connect RPC.
//
// The companion app serves drawbridge.companion.v1.CompanionService. Calls
// drawbridge makes are unary procedures; the two event subscriptions are
// server-streaming procedures that stay open until cancelled. Payloads use
// the protobuf well-known types (Struct, ListValue, StringValue, BoolValue,
// Empty) holding the JSON form of the companion package types, so neither
// side needs generated code.
//
//	client := connectrpc.NewClient(http.DefaultClient, "http://localhost:8470", connectrpc.DefaultConfig())
//	defer client.Close()
//
//	path, handler := connectrpc.NewHandler(companionApp)
//	mux.Handle(path, handler)
package connectrpc

import (
	"time"

	"github.com/tailored-agentic-units/drawbridge/config"
)

// ServiceName is the fully-qualified name of the companion service.
const ServiceName = "drawbridge.companion.v1.CompanionService"

// Procedure paths of the companion service.
const (
	ShowObjectProcedure             = "/" + ServiceName + "/ShowObject"
	ShowDrawingProcedure            = "/" + ServiceName + "/ShowDrawing"
	CanShowObjectProcedure          = "/" + ServiceName + "/CanShowObject"
	CanShowDrawingProcedure         = "/" + ServiceName + "/CanShowDrawing"
	ShowToastProcedure              = "/" + ServiceName + "/ShowToast"
	ProposeActionProcedure          = "/" + ServiceName + "/ProposeAction"
	SubscribeAlwaysVisibleProcedure = "/" + ServiceName + "/SubscribeAlwaysVisible"
	ReturnToCompanionAppProcedure   = "/" + ServiceName + "/ReturnToCompanionApp"
	ObjectSelectedProcedure         = "/" + ServiceName + "/ObjectSelected"
	OpenExternalAppProcedure        = "/" + ServiceName + "/OpenExternalApp"
)

// Config controls the client's event subscriptions.
//
// Example JSON:
//
//	{
//	  "reconnect_delay": "1s"
//	}
type Config struct {
	// ReconnectDelay is the pause before an event stream that ended is
	// opened again.
	ReconnectDelay config.Duration `json:"reconnect_delay"`
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay: config.Duration(time.Second),
	}
}

func (c *Config) Merge(source *Config) {
	if source.ReconnectDelay > 0 {
		c.ReconnectDelay = source.ReconnectDelay
	}
}

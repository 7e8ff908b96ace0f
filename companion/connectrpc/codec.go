package connectrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/tailored-agentic-units/drawbridge/companion"
)

// encode stores the JSON form of v in msg, a Struct or ListValue.
func encode[M proto.Message](v any, msg M) (M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return msg, fmt.Errorf("marshal %T: %w", v, err)
	}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return msg, fmt.Errorf("encode %T: %w", v, err)
	}
	return msg, nil
}

// decode reads the JSON form held by msg into v.
func decode(msg proto.Message, v any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// toConnectError maps companion sentinels to RPC codes on the serving side.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	switch {
	case errors.Is(err, companion.ErrRejected):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, companion.ErrUnavailable), errors.Is(err, companion.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeUnknown, err)
	}
}

// fromConnectError maps RPC codes back to companion sentinels on the calling
// side, keeping the RPC error in the chain.
func fromConnectError(procedure string, err error) error {
	switch connect.CodeOf(err) {
	case connect.CodeFailedPrecondition, connect.CodeInvalidArgument, connect.CodePermissionDenied:
		return fmt.Errorf("%s: %w: %w", procedure, companion.ErrRejected, err)
	case connect.CodeUnavailable:
		return fmt.Errorf("%s: %w: %w", procedure, companion.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", procedure, err)
	}
}

package connectrpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/drawbridge/companion"
)

// Service is the companion app's side of the channel. ObjectSelected and
// OpenExternalApp return one event channel per subscriber; the stream ends
// when the channel is closed or ctx is done.
type Service interface {
	ShowObject(ctx context.Context, req companion.ShowRequest) error
	ShowDrawing(ctx context.Context, drawingID string) error
	CanShowObject(ctx context.Context, objectID string) ([]companion.DrawingDescriptor, error)
	CanShowDrawing(ctx context.Context, drawingID string) (bool, error)
	ShowToast(ctx context.Context, toast companion.Toast) error
	ProposeAction(ctx context.Context, action companion.ActionDescriptor) error
	SubscribeAlwaysVisible(ctx context.Context, actions []companion.ActionDescriptor) error
	ReturnToCompanionApp(ctx context.Context) error

	ObjectSelected(ctx context.Context) (<-chan companion.Selection, error)
	OpenExternalApp(ctx context.Context) (<-chan string, error)
}

// NewHandler builds an HTTP handler serving svc. It returns the path to
// mount the handler on.
func NewHandler(svc Service, opts ...connect.HandlerOption) (string, http.Handler) {
	with := connect.WithHandlerOptions(opts...)

	showObject := connect.NewUnaryHandler(ShowObjectProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
			var payload companion.ShowRequest
			if err := decode(req.Msg, &payload); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			return empty(svc.ShowObject(ctx, payload))
		}, with)

	showDrawing := connect.NewUnaryHandler(ShowDrawingProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[emptypb.Empty], error) {
			return empty(svc.ShowDrawing(ctx, req.Msg.GetValue()))
		}, with)

	canShowObject := connect.NewUnaryHandler(CanShowObjectProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
			drawings, err := svc.CanShowObject(ctx, req.Msg.GetValue())
			if err != nil {
				return nil, toConnectError(err)
			}
			if drawings == nil {
				drawings = []companion.DrawingDescriptor{}
			}
			msg, err := encode(drawings, &structpb.ListValue{})
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(msg), nil
		},
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		with,
	)

	canShowDrawing := connect.NewUnaryHandler(CanShowDrawingProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.BoolValue], error) {
			known, err := svc.CanShowDrawing(ctx, req.Msg.GetValue())
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(wrapperspb.Bool(known)), nil
		},
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		with,
	)

	showToast := connect.NewUnaryHandler(ShowToastProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
			var toast companion.Toast
			if err := decode(req.Msg, &toast); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			return empty(svc.ShowToast(ctx, toast))
		}, with)

	proposeAction := connect.NewUnaryHandler(ProposeActionProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
			var action companion.ActionDescriptor
			if err := decode(req.Msg, &action); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			return empty(svc.ProposeAction(ctx, action))
		}, with)

	subscribeAlwaysVisible := connect.NewUnaryHandler(SubscribeAlwaysVisibleProcedure,
		func(ctx context.Context, req *connect.Request[structpb.ListValue]) (*connect.Response[emptypb.Empty], error) {
			var actions []companion.ActionDescriptor
			if err := decode(req.Msg, &actions); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			return empty(svc.SubscribeAlwaysVisible(ctx, actions))
		}, with)

	returnToCompanionApp := connect.NewUnaryHandler(ReturnToCompanionAppProcedure,
		func(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
			return empty(svc.ReturnToCompanionApp(ctx))
		}, with)

	objectSelected := connect.NewServerStreamHandler(ObjectSelectedProcedure,
		func(ctx context.Context, req *connect.Request[emptypb.Empty], stream *connect.ServerStream[structpb.Struct]) error {
			events, err := svc.ObjectSelected(ctx)
			if err != nil {
				return toConnectError(err)
			}
			return relay(ctx, events, stream, func(sel companion.Selection) (*structpb.Struct, error) {
				return encode(sel, &structpb.Struct{})
			})
		}, with)

	openExternalApp := connect.NewServerStreamHandler(OpenExternalAppProcedure,
		func(ctx context.Context, req *connect.Request[emptypb.Empty], stream *connect.ServerStream[wrapperspb.StringValue]) error {
			events, err := svc.OpenExternalApp(ctx)
			if err != nil {
				return toConnectError(err)
			}
			return relay(ctx, events, stream, func(location string) (*wrapperspb.StringValue, error) {
				return wrapperspb.String(location), nil
			})
		}, with)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ShowObjectProcedure:
			showObject.ServeHTTP(w, r)
		case ShowDrawingProcedure:
			showDrawing.ServeHTTP(w, r)
		case CanShowObjectProcedure:
			canShowObject.ServeHTTP(w, r)
		case CanShowDrawingProcedure:
			canShowDrawing.ServeHTTP(w, r)
		case ShowToastProcedure:
			showToast.ServeHTTP(w, r)
		case ProposeActionProcedure:
			proposeAction.ServeHTTP(w, r)
		case SubscribeAlwaysVisibleProcedure:
			subscribeAlwaysVisible.ServeHTTP(w, r)
		case ReturnToCompanionAppProcedure:
			returnToCompanionApp.ServeHTTP(w, r)
		case ObjectSelectedProcedure:
			objectSelected.ServeHTTP(w, r)
		case OpenExternalAppProcedure:
			openExternalApp.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func empty(err error) (*connect.Response[emptypb.Empty], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func relay[E, M any](ctx context.Context, events <-chan E, stream *connect.ServerStream[M], convert func(E) (*M, error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := convert(event)
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

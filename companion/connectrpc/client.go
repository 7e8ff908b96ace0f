package connectrpc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/observability"
)

var errNilHandler = errors.New("event handler is nil")

// Option configures a Client.
type Option func(*Client)

// WithObserver sets the observer stream lifecycle events are reported to.
func WithObserver(observer observability.Observer) Option {
	return func(c *Client) { c.observer = observer }
}

// WithClientOptions passes options, such as connect.WithGRPC(), to every
// procedure client.
func WithClientOptions(opts ...connect.ClientOption) Option {
	return func(c *Client) { c.clientOpts = append(c.clientOpts, opts...) }
}

// Client is a companion.Channel backed by a remote CompanionService.
type Client struct {
	reconnectDelay time.Duration
	observer       observability.Observer
	clientOpts     []connect.ClientOption

	showObject             *connect.Client[structpb.Struct, emptypb.Empty]
	showDrawing            *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	canShowObject          *connect.Client[wrapperspb.StringValue, structpb.ListValue]
	canShowDrawing         *connect.Client[wrapperspb.StringValue, wrapperspb.BoolValue]
	showToast              *connect.Client[structpb.Struct, emptypb.Empty]
	proposeAction          *connect.Client[structpb.Struct, emptypb.Empty]
	subscribeAlwaysVisible *connect.Client[structpb.ListValue, emptypb.Empty]
	returnToCompanionApp   *connect.Client[emptypb.Empty, emptypb.Empty]
	objectSelected         *connect.Client[emptypb.Empty, structpb.Struct]
	openExternalApp        *connect.Client[emptypb.Empty, wrapperspb.StringValue]

	mu      sync.Mutex
	streams map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewClient creates a client for the CompanionService at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	c := &Client{
		reconnectDelay: defaults.ReconnectDelay.Std(),
		streams:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer = observability.OrNoOp(c.observer)

	baseURL = strings.TrimRight(baseURL, "/")
	with := connect.WithClientOptions(c.clientOpts...)

	c.showObject = connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+ShowObjectProcedure, with)
	c.showDrawing = connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+ShowDrawingProcedure, with)
	c.canShowObject = connect.NewClient[wrapperspb.StringValue, structpb.ListValue](
		httpClient,
		baseURL+CanShowObjectProcedure,
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		with,
	)
	c.canShowDrawing = connect.NewClient[wrapperspb.StringValue, wrapperspb.BoolValue](
		httpClient,
		baseURL+CanShowDrawingProcedure,
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
		with,
	)
	c.showToast = connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+ShowToastProcedure, with)
	c.proposeAction = connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+ProposeActionProcedure, with)
	c.subscribeAlwaysVisible = connect.NewClient[structpb.ListValue, emptypb.Empty](httpClient, baseURL+SubscribeAlwaysVisibleProcedure, with)
	c.returnToCompanionApp = connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+ReturnToCompanionAppProcedure, with)
	c.objectSelected = connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ObjectSelectedProcedure, with)
	c.openExternalApp = connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+OpenExternalAppProcedure, with)

	return c
}

func (c *Client) ShowObject(ctx context.Context, req companion.ShowRequest) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	msg, err := encode(req, &structpb.Struct{})
	if err != nil {
		return err
	}
	if _, err := c.showObject.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fromConnectError(ShowObjectProcedure, err)
	}
	return nil
}

func (c *Client) ShowDrawing(ctx context.Context, drawingID string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if _, err := c.showDrawing.CallUnary(ctx, connect.NewRequest(wrapperspb.String(drawingID))); err != nil {
		return fromConnectError(ShowDrawingProcedure, err)
	}
	return nil
}

func (c *Client) CanShowObject(ctx context.Context, objectID string) ([]companion.DrawingDescriptor, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	resp, err := c.canShowObject.CallUnary(ctx, connect.NewRequest(wrapperspb.String(objectID)))
	if err != nil {
		return nil, fromConnectError(CanShowObjectProcedure, err)
	}

	var drawings []companion.DrawingDescriptor
	if err := decode(resp.Msg, &drawings); err != nil {
		return nil, err
	}
	return drawings, nil
}

func (c *Client) CanShowDrawing(ctx context.Context, drawingID string) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	resp, err := c.canShowDrawing.CallUnary(ctx, connect.NewRequest(wrapperspb.String(drawingID)))
	if err != nil {
		return false, fromConnectError(CanShowDrawingProcedure, err)
	}
	return resp.Msg.GetValue(), nil
}

func (c *Client) ShowToast(ctx context.Context, toast companion.Toast) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	msg, err := encode(toast, &structpb.Struct{})
	if err != nil {
		return err
	}
	if _, err := c.showToast.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fromConnectError(ShowToastProcedure, err)
	}
	return nil
}

func (c *Client) ProposeAction(ctx context.Context, action companion.ActionDescriptor) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	msg, err := encode(action, &structpb.Struct{})
	if err != nil {
		return err
	}
	if _, err := c.proposeAction.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fromConnectError(ProposeActionProcedure, err)
	}
	return nil
}

func (c *Client) SubscribeAlwaysVisible(ctx context.Context, actions []companion.ActionDescriptor) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if actions == nil {
		actions = []companion.ActionDescriptor{}
	}
	msg, err := encode(actions, &structpb.ListValue{})
	if err != nil {
		return err
	}
	if _, err := c.subscribeAlwaysVisible.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fromConnectError(SubscribeAlwaysVisibleProcedure, err)
	}
	return nil
}

func (c *Client) ReturnToCompanionApp(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if _, err := c.returnToCompanionApp.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{})); err != nil {
		return fromConnectError(ReturnToCompanionAppProcedure, err)
	}
	return nil
}

// OnObjectSelected opens the ObjectSelected stream and keeps it open,
// reconnecting after the configured delay, until the returned CancelFunc or
// Close is called. ctx only supplies values; its cancellation does not end
// the subscription.
func (c *Client) OnObjectSelected(ctx context.Context, handler companion.SelectionHandler) (companion.CancelFunc, error) {
	if handler == nil {
		return nil, errNilHandler
	}
	return c.follow(ctx, ObjectSelectedProcedure, func(ctx context.Context) error {
		stream, err := c.objectSelected.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
		if err != nil {
			return err
		}
		defer stream.Close()

		for stream.Receive() {
			var sel companion.Selection
			if err := decode(stream.Msg(), &sel); err != nil {
				c.decodeFailed(ctx, ObjectSelectedProcedure, err)
				continue
			}
			handler(sel)
		}
		return stream.Err()
	})
}

// OnOpenExternalApp opens the OpenExternalApp stream with the same lifetime
// rules as OnObjectSelected.
func (c *Client) OnOpenExternalApp(ctx context.Context, handler companion.LocationHandler) (companion.CancelFunc, error) {
	if handler == nil {
		return nil, errNilHandler
	}
	return c.follow(ctx, OpenExternalAppProcedure, func(ctx context.Context) error {
		stream, err := c.openExternalApp.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
		if err != nil {
			return err
		}
		defer stream.Close()

		for stream.Receive() {
			handler(stream.Msg().GetValue())
		}
		return stream.Err()
	})
}

// Close ends every event subscription and waits for their goroutines. Calls
// made after Close fail with companion.ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, cancel := range c.streams {
		cancel()
	}
	clear(c.streams)
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return companion.ErrClosed
	}
	return nil
}

// follow runs one stream subscription on its own goroutine, reopening the
// stream whenever it ends until the subscription is cancelled.
func (c *Client) follow(ctx context.Context, procedure string, run func(context.Context) error) (companion.CancelFunc, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := uuid.Must(uuid.NewV7()).String()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return nil, companion.ErrClosed
	}
	c.streams[id] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer observability.Emit(context.Background(), c.observer, EventStreamClosed, observability.LevelVerbose, "connectrpc", map[string]any{
			"procedure":    procedure,
			"subscription": id,
		})

		for {
			observability.Emit(streamCtx, c.observer, EventStreamOpen, observability.LevelVerbose, "connectrpc", map[string]any{
				"procedure":    procedure,
				"subscription": id,
			})

			err := run(streamCtx)
			if streamCtx.Err() != nil {
				return
			}

			data := map[string]any{
				"procedure":    procedure,
				"subscription": id,
				"retry_in":     c.reconnectDelay.String(),
			}
			if err != nil {
				data["error"] = err.Error()
			}
			observability.Emit(streamCtx, c.observer, EventStreamEnded, observability.LevelWarning, "connectrpc", data)

			select {
			case <-streamCtx.Done():
				return
			case <-time.After(c.reconnectDelay):
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.streams, id)
			c.mu.Unlock()
			cancel()
		})
	}, nil
}

func (c *Client) decodeFailed(ctx context.Context, procedure string, err error) {
	observability.Emit(ctx, c.observer, EventDecodeFailed, observability.LevelWarning, "connectrpc", map[string]any{
		"procedure": procedure,
		"error":     err.Error(),
	})
}

var _ companion.Channel = (*Client)(nil)

package registry_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/companion/mock"
	"github.com/tailored-agentic-units/drawbridge/loop"
	"github.com/tailored-agentic-units/drawbridge/observability"
	"github.com/tailored-agentic-units/drawbridge/registry"
)

func recordingHandler(calls *[]string, name string) registry.Handler {
	return func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestDispatch_ReverseRegistrationOrder(t *testing.T) {
	ch := mock.New()
	r := registry.New(ch, nil)
	ctx := context.Background()

	var calls []string
	for _, name := range []string{"H1", "H2", "H3"} {
		if _, err := r.Subscribe(ctx, "A", recordingHandler(&calls, name)); err != nil {
			t.Fatalf("Subscribe(%s) error: %v", name, err)
		}
	}

	ch.SelectObject("pump-1")

	want := []string{"H3", "H2", "H1"}
	if !slices.Equal(calls, want) {
		t.Errorf("handler order = %v, want %v", calls, want)
	}
}

func TestDispatch_BroadcastsToAllApplications(t *testing.T) {
	r := registry.New(mock.New(), nil)
	ctx := context.Background()

	var calls []string
	r.Subscribe(ctx, "A", recordingHandler(&calls, "A1"))
	r.Subscribe(ctx, "B", recordingHandler(&calls, "B1"))
	r.Subscribe(ctx, "A", recordingHandler(&calls, "A2"))

	if n := r.Dispatch(ctx, "valve-9"); n != 3 {
		t.Errorf("Dispatch() = %d, want 3", n)
	}

	want := []string{"A2", "A1", "B1"}
	if !slices.Equal(calls, want) {
		t.Errorf("handler order = %v, want %v", calls, want)
	}
}

func TestDispatch_EmptyObjectIDDiscarded(t *testing.T) {
	ch := mock.New()
	rec := observability.NewRecorder()
	r := registry.New(ch, nil, registry.WithObserver(rec))

	var calls []string
	if _, err := r.Subscribe(context.Background(), "A", recordingHandler(&calls, "H1")); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	ch.SelectObject("")

	if len(calls) != 0 {
		t.Errorf("Expected no handler calls, got %v", calls)
	}
	if rec.Count(registry.EventSelectionDiscarded) != 1 {
		t.Errorf("Expected 1 %s event, got %d", registry.EventSelectionDiscarded, rec.Count(registry.EventSelectionDiscarded))
	}
}

func TestDispatch_HandlerFailureIsolated(t *testing.T) {
	rec := observability.NewRecorder()
	r := registry.New(mock.New(), nil, registry.WithObserver(rec))
	ctx := context.Background()

	var calls []string
	r.Subscribe(ctx, "A", recordingHandler(&calls, "H1"))
	r.Subscribe(ctx, "A", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		return errors.New("backend unavailable")
	})
	r.Subscribe(ctx, "A", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		panic("nil map")
	})

	if n := r.Dispatch(ctx, "pump-1"); n != 3 {
		t.Errorf("Dispatch() = %d, want 3", n)
	}

	if !slices.Equal(calls, []string{"H1"}) {
		t.Errorf("Expected H1 to run after failing handlers, got %v", calls)
	}

	failures := rec.OfType(registry.EventHandlerFailed)
	if len(failures) != 2 {
		t.Fatalf("Expected 2 handler failure events, got %d", len(failures))
	}
	if failures[0].Level != observability.LevelError {
		t.Errorf("failure level = %v, want %v", failures[0].Level, observability.LevelError)
	}
}

func TestNotifier_ProposesWithObjectID(t *testing.T) {
	ch := mock.New()
	r := registry.New(ch, nil)
	ctx := context.Background()

	r.Subscribe(ctx, "orders", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		notify(companion.ActionDescriptor{
			Name:            "Orders",
			ActionLabel:     "Show orders",
			CallbackContext: "Order-display?equipment=" + sel.ObjectID,
		})
		return nil
	})
	r.Subscribe(ctx, "silent", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		return nil
	})

	ch.SelectObject("pump-1")

	proposals := ch.Proposals()
	if len(proposals) != 1 {
		t.Fatalf("Expected 1 proposal, got %d", len(proposals))
	}
	if proposals[0].ObjectID != "pump-1" {
		t.Errorf("ObjectID = %q, want %q", proposals[0].ObjectID, "pump-1")
	}
	if proposals[0].CallbackContext != "Order-display?equipment=pump-1" {
		t.Errorf("CallbackContext = %q", proposals[0].CallbackContext)
	}
}

func TestNotifier_ProposalFailureReported(t *testing.T) {
	ch := mock.New(mock.WithError("ProposeAction", companion.ErrRejected))
	rec := observability.NewRecorder()
	r := registry.New(ch, nil, registry.WithObserver(rec))
	ctx := context.Background()

	r.Subscribe(ctx, "A", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		notify(companion.ActionDescriptor{Name: "x", ActionLabel: "x", CallbackContext: "x"})
		return nil
	})

	r.Dispatch(ctx, "pump-1")

	if rec.Count(registry.EventProposalFailed) != 1 {
		t.Errorf("Expected 1 %s event, got %d", registry.EventProposalFailed, rec.Count(registry.EventProposalFailed))
	}
	if rec.Count(registry.EventHandlerFailed) != 0 {
		t.Error("Proposal failure must not count as handler failure")
	}
}

func TestWithProposer(t *testing.T) {
	var proposed []companion.ActionDescriptor
	r := registry.New(mock.New(), nil, registry.WithProposer(func(ctx context.Context, a companion.ActionDescriptor) error {
		proposed = append(proposed, a)
		return nil
	}))
	ctx := context.Background()

	r.Subscribe(ctx, "A", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		notify(companion.ActionDescriptor{ObjectID: "explicit", Name: "x"})
		return nil
	})
	r.Dispatch(ctx, "pump-1")

	if len(proposed) != 1 || proposed[0].ObjectID != "explicit" {
		t.Errorf("Expected explicit object id to be kept, got %+v", proposed)
	}
}

func TestSubscribe_ChannelSubscriptionEstablishedOnce(t *testing.T) {
	ch := mock.New()
	r := registry.New(ch, nil)
	ctx := context.Background()

	noop := func(context.Context, companion.Selection, registry.Notifier) error { return nil }
	r.Subscribe(ctx, "A", noop)
	r.Subscribe(ctx, "B", noop)
	r.Subscribe(ctx, "A", noop)

	if got := ch.SelectionSubscriptions(); got != 1 {
		t.Errorf("SelectionSubscriptions() = %d, want 1", got)
	}

	r.Unsubscribe("A")
	r.Unsubscribe("B")
	r.Subscribe(ctx, "C", noop)

	if got := ch.SelectionSubscriptions(); got != 1 {
		t.Errorf("SelectionSubscriptions() after re-subscribe = %d, want 1", got)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	r := registry.New(mock.New(), nil)
	ctx := context.Background()

	if _, err := r.Subscribe(ctx, "", func(context.Context, companion.Selection, registry.Notifier) error { return nil }); !errors.Is(err, registry.ErrEmptyApplicationID) {
		t.Errorf("Subscribe(empty app) error = %v, want ErrEmptyApplicationID", err)
	}
	if _, err := r.Subscribe(ctx, "A", nil); !errors.Is(err, registry.ErrNilHandler) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrNilHandler", err)
	}
}

func TestSubscribe_ChannelFailureRollsBack(t *testing.T) {
	failure := errors.New("bridge not connected")
	ch := mock.New(mock.WithError("OnObjectSelected", failure))
	r := registry.New(ch, nil)
	ctx := context.Background()

	noop := func(context.Context, companion.Selection, registry.Notifier) error { return nil }
	if _, err := r.Subscribe(ctx, "A", noop); !errors.Is(err, failure) {
		t.Fatalf("Subscribe() error = %v, want %v", err, failure)
	}
	if r.Len("A") != 0 || len(r.Applications()) != 0 {
		t.Error("Expected failed subscription to be rolled back")
	}

	ch.SetError("OnObjectSelected", nil)
	if _, err := r.Subscribe(ctx, "A", noop); err != nil {
		t.Fatalf("Subscribe() retry error: %v", err)
	}
	if ch.SelectionSubscriptions() != 1 {
		t.Errorf("SelectionSubscriptions() = %d, want 1", ch.SelectionSubscriptions())
	}
}

func TestUnsubscribe(t *testing.T) {
	r := registry.New(mock.New(), nil)
	ctx := context.Background()

	var calls []string
	s1, _ := r.Subscribe(ctx, "A", recordingHandler(&calls, "H1"))
	r.Subscribe(ctx, "A", recordingHandler(&calls, "H2"))
	r.Subscribe(ctx, "B", recordingHandler(&calls, "B1"))

	r.Unsubscribe("A", "unknown-id")
	if r.Len("A") != 2 {
		t.Errorf("Len(A) after unknown id = %d, want 2", r.Len("A"))
	}

	r.Unsubscribe("A", s1.ID)
	if r.Len("A") != 1 {
		t.Errorf("Len(A) = %d, want 1", r.Len("A"))
	}

	r.Dispatch(ctx, "pump-1")
	if !slices.Equal(calls, []string{"H2", "B1"}) {
		t.Errorf("calls = %v, want [H2 B1]", calls)
	}

	r.Unsubscribe("B")
	if !slices.Equal(r.Applications(), []string{"A"}) {
		t.Errorf("Applications() = %v, want [A]", r.Applications())
	}

	r.Unsubscribe("missing")
}

func TestUnsubscribe_LastHandlerRemovesApplication(t *testing.T) {
	r := registry.New(mock.New(), nil)

	sub, _ := r.Subscribe(context.Background(), "A", func(context.Context, companion.Selection, registry.Notifier) error { return nil })
	r.Unsubscribe("A", sub.ID)

	if apps := r.Applications(); len(apps) != 0 {
		t.Errorf("Applications() = %v, want none", apps)
	}
}

func TestClose(t *testing.T) {
	ch := mock.New()
	r := registry.New(ch, nil)
	ctx := context.Background()

	noop := func(context.Context, companion.Selection, registry.Notifier) error { return nil }
	r.Subscribe(ctx, "A", noop)
	r.Close()
	r.Close()

	if ch.LiveSubscriptions() != 0 {
		t.Errorf("LiveSubscriptions() = %d, want 0", ch.LiveSubscriptions())
	}
	if _, err := r.Subscribe(ctx, "A", noop); !errors.Is(err, registry.ErrClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrClosed", err)
	}
}

func TestDispatch_ThroughLoop(t *testing.T) {
	l := loop.New(loop.DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)
	defer l.Shutdown(time.Second)

	ch := mock.New()
	r := registry.New(ch, l)

	var calls []string
	r.Subscribe(ctx, "A", func(ctx context.Context, sel companion.Selection, notify registry.Notifier) error {
		calls = append(calls, sel.ObjectID)
		return nil
	})

	ch.SelectObject("first")
	ch.SelectObject("second")

	var got []string
	if err := l.Run(ctx, func() { got = slices.Clone(calls) }); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("calls = %v, want [first second]", got)
	}
}

func TestHandlerError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&registry.HandlerError{ApplicationID: "A", SubscriptionID: "s", ObjectID: "o", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("Expected HandlerError to unwrap to its cause")
	}
	if !registry.IsHandlerError(err) {
		t.Error("IsHandlerError() = false, want true")
	}
	if registry.IsHandlerError(cause) {
		t.Error("IsHandlerError(cause) = true, want false")
	}
}

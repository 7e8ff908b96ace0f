package observability

import "context"

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// Fanout returns an Observer that forwards each event to every non-nil
// observer, in the order given. With no observers it returns NoOpObserver;
// with one it returns that observer unwrapped.
func Fanout(observers ...Observer) Observer {
	var targets fanout
	for _, obs := range observers {
		if obs != nil {
			targets = append(targets, obs)
		}
	}

	switch len(targets) {
	case 0:
		return NoOpObserver{}
	case 1:
		return targets[0]
	default:
		return targets
	}
}

type fanout []Observer

func (f fanout) OnEvent(ctx context.Context, event Event) {
	for _, obs := range f {
		obs.OnEvent(ctx, event)
	}
}

// MinLevel returns an Observer that drops events below min before they
// reach obs.
func MinLevel(obs Observer, min Level) Observer {
	return levelFilter{next: OrNoOp(obs), min: min}
}

type levelFilter struct {
	next Observer
	min  Level
}

func (l levelFilter) OnEvent(ctx context.Context, event Event) {
	if event.Level < l.min {
		return
	}
	l.next.OnEvent(ctx, event)
}

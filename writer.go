package outflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// Sink is the only contract outflow consumes from the transport layer.
// A sink is NOT assumed to be thread-safe: the `StreamWriter` guarantees
// `Write` and `Complete` are never invoked concurrently.
type Sink[T any] interface {
	// Ready reports whether the sink can accept one more write without
	// unbounded buffering. It must be non-blocking and callable from any
	// goroutine at any time.
	Ready() bool

	// Write forwards one element to the peer. It may block briefly and
	// may fail; it is only ever called from one goroutine at a time.
	Write(elem T) error

	// Complete signals end-of-stream to the peer.
	Complete() error
}

// ReadinessNotifier is implemented by sinks which can observe their own
// not-ready to ready transitions. `NewStreamWriter` detects it and
// registers `StreamWriter.OnReadinessChanged` as the callback, so such
// sinks are wired without extra plumbing on the caller side.
type ReadinessNotifier interface {
	// NotifyReadiness registers fn to be invoked on every transition of
	// `Ready` from false to true. Spurious extra invocations are harmless.
	NotifyReadiness(fn func())
}

// StreamWriter serializes concurrent producers onto a single `Sink` while
// honouring its readiness signal.
//
// Any number of goroutines may call `Submit`. A producer facing a not-ready
// sink parks on the writer's `Gate` until `OnReadinessChanged` wakes it;
// the wait happens strictly outside the exclusive write section, so a
// parked producer never blocks one which is able to make progress.
//
// Writes submitted sequentially by one goroutine reach the sink in
// submission order. No cross-goroutine ordering is promised beyond "writes
// never overlap in time".
type StreamWriter[T any] struct {
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	gate *Gate
	sink Sink[T]

	// writeSlot is the exclusion token: a single-slot channel, so at most
	// one goroutine is inside `sink.Write` at any instant and the wait to
	// acquire it stays cancellable.
	writeSlot chan struct{}

	closeOnce sync.Once
	closeCh   chan struct{}
}

func NewStreamWriter[T any](sink Sink[T], opts ...Option) (*StreamWriter[T], error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	w := &StreamWriter[T]{
		labels:    cfg.metricLabels,
		sink:      sink,
		writeSlot: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}

	if cfg.logHandler == nil {
		w.logger = slog.Default()
	} else {
		w.logger = slog.New(cfg.logHandler)
	}

	if cfg.msink == nil {
		w.msink = metrics.Default()
	} else {
		w.msink = cfg.msink
	}

	if cfg.gate == nil {
		w.gate = NewGate()
	} else {
		w.gate = cfg.gate
	}

	if notifier, ok := sink.(ReadinessNotifier); ok {
		notifier.NotifyReadiness(w.OnReadinessChanged)
	}

	return w, nil
}

// Gate exposes the writer's gate so a transport sharing one readiness
// signal across several writers can advance them all at once.
func (w *StreamWriter[T]) Gate() *Gate {
	return w.gate
}

// Submit forwards one element to the sink, blocking while the sink reports
// it cannot take more data and while another goroutine holds the write
// section. It returns `ErrWriterClosed` after `Complete`, ctx's error if
// cancelled during either wait, and the sink failure wrapped in
// `ErrSinkWrite` if the write itself fails.
func (w *StreamWriter[T]) Submit(ctx context.Context, elem T) error {
	select {
	case <-w.closeCh:
		return ErrWriterClosed
	default:
	}

	// Capture the phase before sampling readiness so an advance landing
	// between the two is observed by the comparison inside AwaitAdvance.
	phase := w.gate.Current()
	for !w.sink.Ready() {
		select {
		case <-w.closeCh:
			return ErrWriterClosed
		default:
		}

		w.msink.IncrCounterWithLabels(MetricOutflowBlockedCount, 1.0, w.labels)
		w.logger.Debug("sink is not ready, parking producer", LabelPhase.L(phase))

		next, err := w.gate.AwaitAdvance(ctx, phase)
		if err != nil {
			return err
		}
		phase = next
		w.msink.IncrCounterWithLabels(MetricOutflowWakeupCount, 1.0, w.labels)
	}

	select {
	case w.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.closeCh:
		return ErrWriterClosed
	}
	defer func() { <-w.writeSlot }()

	// The writer may have completed while we were acquiring the slot.
	select {
	case <-w.closeCh:
		return ErrWriterClosed
	default:
	}

	if err := w.sink.Write(elem); err != nil {
		w.msink.IncrCounterWithLabels(
			MetricOutflowSubmitErrorCount,
			1.0,
			append(w.labels, LabelError.M("sink_write")),
		)
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}

	w.msink.IncrCounterWithLabels(MetricOutflowSubmitCount, 1.0, w.labels)
	return nil
}

// OnReadinessChanged must be invoked by the transport at least once for
// every transition of `Sink.Ready` from false to true. Extra invocations
// only cost a broadcast: woken producers re-check readiness directly, the
// phase is a wake signal and never the source of truth.
func (w *StreamWriter[T]) OnReadinessChanged() {
	phase := w.gate.Advance()
	w.msink.IncrCounterWithLabels(MetricOutflowAdvanceCount, 1.0, w.labels)
	w.logger.Debug("readiness changed, gate advanced", LabelPhase.L(phase))
}

// Complete waits for any in-flight write to drain, signals end-of-stream to
// the sink and marks the writer closed. Further `Submit` or `Complete`
// calls return `ErrWriterClosed`.
func (w *StreamWriter[T]) Complete() error {
	select {
	case <-w.closeCh:
		return ErrWriterClosed
	default:
	}

	w.writeSlot <- struct{}{}
	defer func() { <-w.writeSlot }()

	already := true
	var err error
	w.closeOnce.Do(func() {
		already = false
		close(w.closeCh)
		err = w.sink.Complete()
	})
	if already {
		return ErrWriterClosed
	}

	// Wake parked producers so they observe the closure promptly instead
	// of sleeping until the next readiness transition.
	w.gate.Advance()
	w.msink.IncrCounterWithLabels(MetricOutflowCompleteCount, 1.0, w.labels)
	w.logger.Debug("stream writer completed")
	return err
}

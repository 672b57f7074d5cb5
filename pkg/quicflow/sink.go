package quicflow

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
	"github.com/quic-go/quic-go"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/raskyld/outflow"
)

const defaultWindowBytes = 1 << 16
const defaultMaxFrameBytes = 1 << 20

var (
	MetricQuicflowOutBytes      = []string{"quicflow", "out", "bytes"}
	MetricQuicflowOutErrorCount = []string{"quicflow", "out", "error", "count"}
	MetricQuicflowCreditBytes   = []string{"quicflow", "credit", "bytes"}
)

var _ outflow.Sink[[]byte] = (*StreamSink[[]byte])(nil)
var _ outflow.ReadinessNotifier = (*StreamSink[[]byte])(nil)

// StreamSink forwards varint-length-prefixed frames onto a `quic.Stream`
// and derives readiness from a credit window: every frame written consumes
// window bytes, and the peer returns uvarint credit grants on the receive
// half of the same bidirectional stream as it drains.
//
// It implements `outflow.Sink` and `outflow.ReadinessNotifier`, so handing
// it to `outflow.NewStreamWriter` wires the credit loop to the writer's
// gate without extra plumbing.
//
// Per the `outflow.Sink` contract, `Write` and `Complete` must not be
// called concurrently; the credit loop runs on its own goroutine and only
// touches the receive half.
type StreamSink[T any] struct {
	stream quic.Stream
	codec  Codec[T]
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	window   int64
	maxFrame uint64
	inflight atomic.Int64

	notifyOnce sync.Once
	closeOnce  sync.Once
	closed     atomic.Bool
}

type sinkConfig struct {
	windowBytes  int64
	maxFrame     uint64
	logHandler   slog.Handler
	msink        metrics.MetricSink
	metricLabels []metrics.Label
}

// SinkOption to pass to `NewStreamSink`.
type SinkOption func(*sinkConfig) error

// WithWindow bounds how many frame bytes may be in flight before the sink
// reports it is not ready.
func WithWindow(bytes int64) SinkOption {
	return func(c *sinkConfig) error {
		if bytes <= 0 {
			return fmt.Errorf("window must be positive, got %d", bytes)
		}
		c.windowBytes = bytes
		return nil
	}
}

// WithMaxFrame bounds the payload size of a single frame.
func WithMaxFrame(bytes uint64) SinkOption {
	return func(c *sinkConfig) error {
		if bytes == 0 {
			return fmt.Errorf("max frame must be positive")
		}
		c.maxFrame = bytes
		return nil
	}
}

// WithLog specifies which `slog.Handler` to use.
func WithLog(handler slog.Handler) SinkOption {
	return func(c *sinkConfig) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to chose how to collect the metrics emitted by
// the sink.
func WithMetricSink(ms metrics.MetricSink) SinkOption {
	return func(c *sinkConfig) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by the sink.
func WithMetricLabels(labels []metrics.Label) SinkOption {
	return func(c *sinkConfig) error {
		c.metricLabels = labels
		return nil
	}
}

func NewStreamSink[T any](stream quic.Stream, codec Codec[T], opts ...SinkOption) (*StreamSink[T], error) {
	cfg := sinkConfig{
		windowBytes: defaultWindowBytes,
		maxFrame:    defaultMaxFrameBytes,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	s := &StreamSink[T]{
		stream:   stream,
		codec:    codec,
		labels:   cfg.metricLabels,
		window:   cfg.windowBytes,
		maxFrame: cfg.maxFrame,
	}

	if cfg.logHandler == nil {
		s.logger = slog.Default()
	} else {
		s.logger = slog.New(cfg.logHandler)
	}

	if cfg.msink == nil {
		s.msink = metrics.Default()
	} else {
		s.msink = cfg.msink
	}

	return s, nil
}

// Ready reports whether the credit window has room for one more frame.
func (s *StreamSink[T]) Ready() bool {
	return s.inflight.Load() < s.window
}

func (s *StreamSink[T]) Write(elem T) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}

	payload, err := s.codec.Marshal(elem)
	if err != nil {
		return err
	}
	if uint64(len(payload)) > s.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrTooLargeFrame, len(payload))
	}

	frame := protowire.AppendVarint(
		make([]byte, 0, binary.MaxVarintLen64+len(payload)),
		uint64(len(payload)),
	)
	frame = append(frame, payload...)

	if _, err := s.stream.Write(frame); err != nil {
		s.msink.IncrCounterWithLabels(MetricQuicflowOutErrorCount, 1.0, s.labels)
		return fmt.Errorf("%w: %w", ErrStreamWrite, err)
	}

	s.inflight.Add(int64(len(frame)))
	s.msink.IncrCounterWithLabels(MetricQuicflowOutBytes, float32(len(frame)), s.labels)
	return nil
}

// Complete closes the send half of the stream, flushing pending frames.
func (s *StreamSink[T]) Complete() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.stream.Close()
	})
	return err
}

// NotifyReadiness registers the wake callback and starts the credit loop.
// `outflow.NewStreamWriter` invokes it when the sink is handed over.
func (s *StreamSink[T]) NotifyReadiness(fn func()) {
	s.notifyOnce.Do(func() {
		go s.creditLoop(fn)
	})
}

func (s *StreamSink[T]) creditLoop(notify func()) {
	br := bufio.NewReader(s.stream)
	for {
		grant, err := binary.ReadUvarint(br)
		if err != nil {
			if s.closed.Load() {
				s.logger.Debug("credit loop stopping, sink completed")
			} else {
				s.logger.Warn("credit stream broken", "error", err)
			}
			return
		}

		wasReady := s.Ready()
		now := s.inflight.Add(-int64(grant))
		if now < 0 {
			// A grant for bytes we never sent is a peer protocol
			// violation; readiness stays true so it cannot wedge us.
			s.logger.Warn("peer granted more credit than in-flight bytes",
				"grant", grant, "inflight", now)
		}

		s.msink.IncrCounterWithLabels(MetricQuicflowCreditBytes, float32(grant), s.labels)
		if !wasReady && s.Ready() {
			s.logger.Debug("window reopened", "inflight", now)
			notify()
		}
	}
}

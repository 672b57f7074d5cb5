// *outflow* serializes many concurrent producers onto a single outbound
// stream while honouring the backpressure the stream reports.
//
// Streaming transports (QUIC, HTTP/2, gRPC, ...) expose a *readiness* signal:
// "I can take more data right now". When the peer stops draining, readiness
// flips off and well-behaved senders must stop writing instead of buffering
// without bound. *outflow* gives you a `StreamWriter` that any number of
// goroutines can call; it guarantees that:
//
// * the underlying `Sink.Write` is never invoked by two goroutines at once,
// * a producer facing a not-ready sink *parks* instead of spinning or
//   dropping its element,
// * parked producers are woken promptly when readiness comes back, without
//   lost-wakeup races.
//
// ## How it works
//
// The wake-up machinery is a `Gate`: a monotonic *phase* counter with a
// broadcast wait. A producer captures the phase, re-checks readiness, and
// only then waits for the phase to move past the captured value. Because the
// wait condition is a numeric comparison and not an edge-triggered flag, an
// advance racing with the transition into the wait is still observed.
//
// The transport reports readiness transitions by calling
// `StreamWriter.OnReadinessChanged`, which advances the `Gate` and releases
// every parked producer at once. Woken producers re-check `Sink.Ready`
// directly: the phase is purely a wake signal, never the condition itself.
//
// The write path is guarded by a single-slot token which is never held
// across a readiness wait, so a producer parked on backpressure cannot
// stall the producers which are able to make progress.
//
// ## Design Principles
//
// > `outflow` surfaces every failure and recovers from none.
//
// The writer performs no retry, no buffering and no local recovery: a sink
// write failure is reported to the producer which triggered it, a cancelled
// context unwinds the wait, and a completed writer rejects further submits.
// Retry policy belongs to the RPC layer stacked above this primitive.
//
// Dependencies are kept minimal:
//
// * [`hashicorp/go-metrics`][dep-met], to let you chose how to collect metrics.
// * `log/slog`, to let you chose how to treat structured logs.
// * [`quic-go/quic-go`][dep-qgo] and [`protobuf`][dep-pb], used only by the
//   optional `pkg/quicflow` sink.
//
// [dep-met]: https://pkg.go.dev/github.com/hashicorp/go-metrics
// [dep-qgo]: https://pkg.go.dev/github.com/quic-go/quic-go
// [dep-pb]: https://pkg.go.dev/google.golang.org/protobuf
package outflow

// Package accountant collects counter samples from store components and
// forwards them to a sink, best-effort.
//
// Producers never block: when the buffer is full, samples drop. The
// forwarding loop is rate-limited so a noisy component cannot flood the
// sink.
package accountant

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Sample is one counter observation.
type Sample struct {
	Timestamp time.Time
	Name      string
	Value     float64
}

// Sink receives forwarded samples.
type Sink interface {
	Record(s Sample)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s Sample)

// Record implements Sink.
func (f SinkFunc) Record(s Sample) { f(s) }

// SlogSink logs every sample at debug level.
func SlogSink(log *slog.Logger) Sink {
	return SinkFunc(func(s Sample) {
		log.Debug("metric", "name", s.Name, "value", s.Value, "ts", s.Timestamp)
	})
}

// NopSink drops every sample.
func NopSink() Sink { return SinkFunc(func(Sample) {}) }

// Accountant fans samples from producers into a sink.
type Accountant struct {
	samples chan Sample
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts an accountant forwarding to sink at most maxPerSecond samples
// per second.
func New(sink Sink, maxPerSecond float64) *Accountant {
	if sink == nil {
		sink = NopSink()
	}
	if maxPerSecond <= 0 {
		maxPerSecond = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Accountant{
		samples: make(chan Sample, 1024),
		limiter: rate.NewLimiter(rate.Limit(maxPerSecond), int(maxPerSecond)),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run(ctx, sink)
	return a
}

func (a *Accountant) run(ctx context.Context, sink Sink) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			// Drain what is already buffered, without rate limiting.
			for {
				select {
				case s := <-a.samples:
					sink.Record(s)
				default:
					return
				}
			}
		case s := <-a.samples:
			if err := a.limiter.Wait(ctx); err != nil {
				// Shutdown mid-wait: deliver what we hold, then drain.
				sink.Record(s)
				for {
					select {
					case rest := <-a.samples:
						sink.Record(rest)
					default:
						return
					}
				}
			}
			sink.Record(s)
		}
	}
}

// Record submits one sample. Delivery is best-effort: a full buffer drops
// the sample.
func (a *Accountant) Record(name string, value float64) {
	select {
	case a.samples <- Sample{Timestamp: time.Now().UTC(), Name: name, Value: value}:
	default:
	}
}

// Close stops forwarding after draining buffered samples.
func (a *Accountant) Close() {
	a.cancel()
	<-a.done
}

package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrOpenCircuit is returned when the breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "pos_breaker_state",
		Help: "Current breaker state: 0=closed,1=open,2=half-open",
	},
	[]string{"target"},
)

func init() {
	prometheus.MustRegister(breakerState)
}

// Breaker is a failure-ratio circuit breaker guarding one downstream target.
// It opens once the rolling failure ratio crosses the threshold after a
// minimum number of observations, cools off, then probes via half-open.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	minRequests  int
	failureRatio float64
	openedAt     time.Time
	openFor      time.Duration
	target       string
	logger       zerolog.Logger
}

// NewBreaker constructs a breaker for the named target. Zero or out-of-range
// arguments fall back to sane defaults.
func NewBreaker(target string, minRequests int, failureRatio float64, openFor time.Duration, logger zerolog.Logger) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		state:        Closed,
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		target:       target,
		logger:       logger.With().Str("component", "breaker").Str("target", target).Logger(),
	}
}

// Allow reports whether a request may proceed. An open breaker admits one
// probe after the cool-off period by moving to half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		if time.Since(b.openedAt) >= b.openFor {
			b.transitionLocked(HalfOpen)
			return true
		}
		return false
	}
	return true
}

// Report records a request outcome and drives state transitions.
func (b *Breaker) Report(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(Closed)
		} else {
			b.transitionLocked(Open)
		}
		return
	}
	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.successes + b.failures
	if total < b.minRequests {
		return
	}
	if float64(b.failures)/float64(total) >= b.failureRatio {
		b.transitionLocked(Open)
	} else if total > b.minRequests*2 {
		// halve the window so old outcomes age out
		b.successes /= 2
		b.failures /= 2
	}
}

func (b *Breaker) transitionLocked(next State) {
	prev := b.state
	b.state = next
	b.failures = 0
	b.successes = 0
	if next == Open {
		b.openedAt = time.Now()
	}
	breakerState.WithLabelValues(b.target).Set(float64(next))
	b.logger.Warn().Str("from", prev.String()).Str("to", next.String()).Msg("breaker transition")
}

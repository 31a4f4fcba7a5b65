package payment

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-terminal/internal/backend"
)

// PollOutcome is the terminal state of a verification poll.
type PollOutcome int

const (
	// PollVerified means the charge settled and the sale may finalize.
	PollVerified PollOutcome = iota
	// PollFailed means the gateway reported a hard failure.
	PollFailed
	// PollTimedOut means the attempt budget ran out while still pending. The
	// sale is left unfinalized for later reconciliation.
	PollTimedOut
	// PollCancelled means the operator cancelled while polling.
	PollCancelled
)

func (o PollOutcome) String() string {
	switch o {
	case PollVerified:
		return "verified"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	case PollCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PollResult reports how a verification poll ended.
type PollResult struct {
	Outcome  PollOutcome
	Message  string
	Attempts int
}

// Verifier checks settlement of an in-flight charge.
type Verifier interface {
	VerifyPayment(ctx context.Context, reference string) (backend.VerifyResponse, error)
}

// Poller drives the bounded verification loop: a structured loop awaiting a
// delay between attempts, with cancellation checked before every wait and
// every call. Defaults are 20 attempts at 3s spacing, about a minute.
type Poller struct {
	Verifier    Verifier
	MaxAttempts int
	Interval    time.Duration
	Logger      zerolog.Logger
}

const (
	defaultMaxAttempts = 20
	defaultInterval    = 3 * time.Second
)

// Run polls until a terminal outcome. Transport errors count against the
// attempt budget like pending responses; only an explicit failure status
// aborts early. Context cancellation maps to PollCancelled.
func (p Poller) Run(ctx context.Context, reference string) PollResult {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	var lastMessage string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return p.finish(PollResult{Outcome: PollCancelled, Attempts: attempt - 1})
		}
		verifyPollAttempts.Inc()
		resp, err := p.Verifier.VerifyPayment(ctx, reference)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return p.finish(PollResult{Outcome: PollCancelled, Attempts: attempt})
			}
			p.Logger.Warn().Err(err).Int("attempt", attempt).Str("reference", reference).Msg("verify attempt failed")
			lastMessage = err.Error()
		case resp.Pending:
			lastMessage = resp.Message
		case settled(resp.Status):
			return p.finish(PollResult{Outcome: PollVerified, Message: resp.Message, Attempts: attempt})
		default:
			return p.finish(PollResult{Outcome: PollFailed, Message: resp.Message, Attempts: attempt})
		}
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p.finish(PollResult{Outcome: PollCancelled, Attempts: attempt})
		case <-timer.C:
		}
	}
	return p.finish(PollResult{Outcome: PollTimedOut, Message: lastMessage, Attempts: maxAttempts})
}

func (p Poller) finish(result PollResult) PollResult {
	verifyPollOutcomes.WithLabelValues(result.Outcome.String()).Inc()
	p.Logger.Info().
		Str("outcome", result.Outcome.String()).
		Int("attempts", result.Attempts).
		Msg("verification poll finished")
	return result
}

func settled(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful", "settled", "completed", "ok":
		return true
	default:
		return false
	}
}

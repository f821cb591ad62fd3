package suggest

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/logger"
)

// ErrSourceUnavailable is returned while the breaker is open.
var ErrSourceUnavailable = errors.New("suggestion source unavailable")

type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	// OnStateChange receives the new state name, e.g. for metrics.
	OnStateChange func(source, state string)
}

// BreakerSource stops calling a failing backend for a while so rounds fail
// fast instead of each waiting out the full timeout.
type BreakerSource struct {
	next Source
	cb   *gobreaker.CircuitBreaker[[]domain.Candidate]
}

func NewBreakerSource(next Source, cfg BreakerConfig, log *logger.Logger) *BreakerSource {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = constants.DefaultBreakerFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultBreakerTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("breaker")

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// An answer without candidates still means the backend is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoCandidates) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Suggestion source breaker changed state", "source", name, "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, to.String())
			}
		},
	}

	return &BreakerSource{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[[]domain.Candidate](settings),
	}
}

func (b *BreakerSource) Name() string {
	return b.next.Name()
}

func (b *BreakerSource) Suggest(ctx context.Context, req Request) ([]domain.Candidate, error) {
	out, err := b.cb.Execute(func() ([]domain.Candidate, error) {
		return b.next.Suggest(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrSourceUnavailable, err)
	}
	return out, err
}

// State reports the breaker state name.
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}

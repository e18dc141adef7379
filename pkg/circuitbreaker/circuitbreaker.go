package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the protected function while the
// breaker is open or the half-open probe budget is spent.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold successful probes close it again.
	SuccessThreshold int
	OpenTimeout      time.Duration
	MaxHalfOpenCalls int
	// IsFailure decides which errors count; nil counts every non-nil error.
	IsFailure func(error) bool
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MaxHalfOpenCalls: 3,
	}
}

type Breaker struct {
	cfg Config
	now func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	openedAt      time.Time

	onStateChange func(from, to State)
}

func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxHalfOpenCalls <= 0 {
		cfg.MaxHalfOpenCalls = def.MaxHalfOpenCalls
	}
	// probes are counted, not tracked in flight
	if cfg.MaxHalfOpenCalls < cfg.SuccessThreshold {
		cfg.MaxHalfOpenCalls = cfg.SuccessThreshold
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn, called synchronously after each transition
// with the breaker lock released.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn unless the breaker rejects the call. fn's error is
// returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// Do is Execute for functions that return a value.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if err := b.before(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn()
	b.after(err)
	return v, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	var notify func()
	defer func() {
		b.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		notify = b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.MaxHalfOpenCalls {
			return ErrOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	var notify func()
	defer func() {
		b.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	failed := err != nil && b.cfg.IsFailure(err)
	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			notify = b.transition(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			notify = b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			notify = b.transition(StateClosed)
		}
	}
}

// transition must be called with mu held; the returned func fires the
// callback and must run after unlocking.
func (b *Breaker) transition(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}

	fn := b.onStateChange
	if fn == nil {
		return nil
	}
	return func() { fn(from, to) }
}

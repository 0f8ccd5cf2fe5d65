// Package cooldown tracks per (command, user) rate-limit state.
//
// A key starts Idle. Every qualifying invocation bumps its usage count; the
// invocation that reaches the command's threshold opens a cooldown window
// and resets the count. Once the window has passed the key is Idle again.
// Expiry is lazy: nothing has to run for a key to leave its window, the
// optional sweeper only reclaims memory.
package cooldown

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidPolicy = errors.New("invalid cooldown policy")
	ErrInvalidKey    = errors.New("invalid cooldown key")
)

// Key identifies the rate-limit state of one user for one command.
type Key struct {
	Command string
	User    string
}

func (k Key) String() string { return k.Command + "/" + k.User }

func (k Key) validate() error {
	if k.Command == "" || k.User == "" {
		return ErrInvalidKey
	}
	return nil
}

// Record is the state stored for a key. A zero ExpiresAt means the key is
// not cooled down.
type Record struct {
	Usage     int
	ExpiresAt time.Time
}

// onCooldown reports whether the window is still open at now.
func (r Record) onCooldown(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.Before(r.ExpiresAt)
}

// settle drops a window that has already passed, starting a fresh cycle.
func (r Record) settle(now time.Time) Record {
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
		return Record{}
	}
	return r
}

func (r Record) idle() bool { return r.Usage == 0 && r.ExpiresAt.IsZero() }

// Policy is the rate limit a command declares.
type Policy struct {
	// Threshold is the number of invocations allowed before the window
	// opens. Values below 1 are treated as 1.
	Threshold int
	Window    time.Duration
}

func (p Policy) threshold() int {
	if p.Threshold < 1 {
		return 1
	}
	return p.Threshold
}

func (p Policy) validate() error {
	if p.Window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Verdict is the outcome of Consume.
type Verdict struct {
	// Blocked is set when the key was already cooling down. Nothing was
	// recorded in that case.
	Blocked  bool
	TimeLeft time.Duration
	// Usage is the invocation count this call was accounted as.
	Usage int
	// Started is set when this call reached the threshold and opened the window.
	Started bool
}

// Store holds cooldown state. Implementations must be safe for concurrent
// use, and Consume must be atomic per key.
type Store interface {
	IsOnCooldown(ctx context.Context, key Key) (bool, error)
	// TimeLeft returns 0 when the key is not cooling down.
	TimeLeft(ctx context.Context, key Key) (time.Duration, error)
	UsageCount(ctx context.Context, key Key) (int, error)
	RecordUsage(ctx context.Context, key Key) error
	ResetUsage(ctx context.Context, key Key) error
	StartCooldown(ctx context.Context, key Key, d time.Duration) error

	// Consume checks the key and advances its accounting in one step:
	// blocked keys are reported untouched; otherwise usage+1 either reaches
	// the threshold (window opened, usage reset) or is recorded.
	Consume(ctx context.Context, key Key, p Policy) (Verdict, error)
}

// Sweeper is implemented by stores that keep state in process memory.
type Sweeper interface {
	// Sweep drops records that carry no state and returns how many went.
	Sweep(ctx context.Context) (int, error)
}

// consume is the shared accounting step, applied to a record the caller
// already holds exclusively.
func consume(rec Record, now time.Time, p Policy) (Record, Verdict) {
	rec = rec.settle(now)
	if rec.onCooldown(now) {
		return rec, Verdict{Blocked: true, TimeLeft: rec.ExpiresAt.Sub(now), Usage: rec.Usage}
	}

	usage := rec.Usage + 1
	if usage >= p.threshold() {
		return Record{ExpiresAt: now.Add(p.Window)}, Verdict{Usage: usage, Started: true}
	}
	rec.Usage = usage
	return rec, Verdict{Usage: usage}
}

type options struct {
	now     func() time.Time
	prefix  string
	idleTTL time.Duration
}

// Option configures a store.
type Option func(*options)

func defaultOptions() options {
	return options{
		now:     time.Now,
		prefix:  "cooldown:",
		idleTTL: 24 * time.Hour,
	}
}

// WithClock overrides the time source. Tests use it to step time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeyPrefix sets the valkey key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithIdleTTL sets how long a usage count that never reached a cooldown is
// kept after its last update. Defaults to 24h.
func WithIdleTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.idleTTL = ttl
		}
	}
}

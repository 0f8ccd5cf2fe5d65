package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Each key is a hash {usage, expires}; expires is unix millis, 0 when idle.
// Scripts take the caller's clock so every replica agrees with the memory
// store semantics and tests can step time.

var consumeScript = valkey.NewLuaScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local idle = tonumber(ARGV[4])
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires') or '0')
local usage = tonumber(redis.call('HGET', KEYS[1], 'usage') or '0')
if expires > 0 and now < expires then
  return {1, expires - now, usage, 0}
end
if expires > 0 then
  usage = 0
end
usage = usage + 1
if usage >= threshold then
  redis.call('HSET', KEYS[1], 'usage', 0, 'expires', now + window)
  redis.call('PEXPIRE', KEYS[1], window)
  return {0, 0, usage, 1}
end
redis.call('HSET', KEYS[1], 'usage', usage, 'expires', 0)
redis.call('PEXPIRE', KEYS[1], idle)
return {0, 0, usage, 0}
`)

var recordScript = valkey.NewLuaScript(`
local now = tonumber(ARGV[1])
local idle = tonumber(ARGV[2])
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires') or '0')
if expires > 0 and now >= expires then
  redis.call('HSET', KEYS[1], 'usage', 0, 'expires', 0)
  expires = 0
end
local usage = redis.call('HINCRBY', KEYS[1], 'usage', 1)
if expires == 0 then
  redis.call('PEXPIRE', KEYS[1], idle)
end
return usage
`)

var startScript = valkey.NewLuaScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires') or '0')
if expires > 0 and now >= expires then
  redis.call('HSET', KEYS[1], 'usage', 0)
end
redis.call('HSET', KEYS[1], 'expires', now + window)
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

// ValkeyStore keeps cooldown state in valkey so several bot processes share
// one view of every user's rate limit.
type ValkeyStore struct {
	client  valkey.Client
	now     func() time.Time
	prefix  string
	idleTTL time.Duration
}

// NewValkeyStore wraps an existing client. The caller owns the client.
func NewValkeyStore(client valkey.Client, opts ...Option) *ValkeyStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ValkeyStore{
		client:  client,
		now:     o.now,
		prefix:  o.prefix,
		idleTTL: o.idleTTL,
	}
}

// NewValkeyClient dials address with the default client options.
func NewValkeyClient(address string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{address}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", address, err)
	}
	return client, nil
}

func (s *ValkeyStore) key(k Key) string {
	return s.prefix + k.Command + ":" + k.User
}

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func durMillis(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

func (s *ValkeyStore) load(ctx context.Context, k Key) (Record, time.Time, error) {
	now := s.now()
	if err := k.validate(); err != nil {
		return Record{}, now, err
	}

	cmd := s.client.B().Hmget().Key(s.key(k)).Field("usage", "expires").Build()
	vals, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return Record{}, now, fmt.Errorf("load %s: %w", k, err)
	}

	var rec Record
	if len(vals) == 2 {
		if !vals[0].IsNil() {
			usage, err := vals[0].AsInt64()
			if err != nil {
				return Record{}, now, fmt.Errorf("decode usage of %s: %w", k, err)
			}
			rec.Usage = int(usage)
		}
		if !vals[1].IsNil() {
			exp, err := vals[1].AsInt64()
			if err != nil {
				return Record{}, now, fmt.Errorf("decode expiry of %s: %w", k, err)
			}
			if exp > 0 {
				rec.ExpiresAt = time.UnixMilli(exp)
			}
		}
	}
	return rec.settle(now), now, nil
}

func (s *ValkeyStore) IsOnCooldown(ctx context.Context, k Key) (bool, error) {
	rec, now, err := s.load(ctx, k)
	if err != nil {
		return false, err
	}
	return rec.onCooldown(now), nil
}

func (s *ValkeyStore) TimeLeft(ctx context.Context, k Key) (time.Duration, error) {
	rec, now, err := s.load(ctx, k)
	if err != nil {
		return 0, err
	}
	if !rec.onCooldown(now) {
		return 0, nil
	}
	return rec.ExpiresAt.Sub(now), nil
}

func (s *ValkeyStore) UsageCount(ctx context.Context, k Key) (int, error) {
	rec, _, err := s.load(ctx, k)
	if err != nil {
		return 0, err
	}
	return rec.Usage, nil
}

func (s *ValkeyStore) RecordUsage(ctx context.Context, k Key) error {
	if err := k.validate(); err != nil {
		return err
	}
	args := []string{millis(s.now()), durMillis(s.idleTTL)}
	if err := recordScript.Exec(ctx, s.client, []string{s.key(k)}, args).Error(); err != nil {
		return fmt.Errorf("record usage %s: %w", k, err)
	}
	return nil
}

func (s *ValkeyStore) ResetUsage(ctx context.Context, k Key) error {
	if err := k.validate(); err != nil {
		return err
	}
	cmd := s.client.B().Hset().Key(s.key(k)).FieldValue().FieldValue("usage", "0").Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("reset usage %s: %w", k, err)
	}
	return nil
}

func (s *ValkeyStore) StartCooldown(ctx context.Context, k Key, d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPolicy
	}
	if err := k.validate(); err != nil {
		return err
	}
	args := []string{millis(s.now()), durMillis(d)}
	if err := startScript.Exec(ctx, s.client, []string{s.key(k)}, args).Error(); err != nil {
		return fmt.Errorf("start cooldown %s: %w", k, err)
	}
	return nil
}

func (s *ValkeyStore) Consume(ctx context.Context, k Key, p Policy) (Verdict, error) {
	if err := p.validate(); err != nil {
		return Verdict{}, err
	}
	if err := k.validate(); err != nil {
		return Verdict{}, err
	}

	args := []string{
		millis(s.now()),
		strconv.Itoa(p.threshold()),
		durMillis(p.Window),
		durMillis(s.idleTTL),
	}
	out, err := consumeScript.Exec(ctx, s.client, []string{s.key(k)}, args).AsIntSlice()
	if err != nil {
		return Verdict{}, fmt.Errorf("consume %s: %w", k, err)
	}
	if len(out) != 4 {
		return Verdict{}, fmt.Errorf("consume %s: unexpected reply of %d values", k, len(out))
	}

	return Verdict{
		Blocked:  out[0] == 1,
		TimeLeft: time.Duration(out[1]) * time.Millisecond,
		Usage:    int(out[2]),
		Started:  out[3] == 1,
	}, nil
}

package cooldown

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestValkeyStore(t *testing.T, clock *fakeClock) *ValkeyStore {
	t.Helper()
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set")
	}
	client, err := NewValkeyClient(addr)
	if err != nil {
		t.Skipf("valkey not available at %s: %v", addr, err)
	}
	t.Cleanup(client.Close)

	prefix := "test:" + uuid.NewString() + ":"
	return NewValkeyStore(client, WithClock(clock.Now), WithKeyPrefix(prefix))
}

func TestValkeyStoreConsumeCycle(t *testing.T) {
	clock := newFakeClock()
	s := newTestValkeyStore(t, clock)
	ctx := context.Background()
	policy := Policy{Threshold: 2, Window: 10 * time.Second}

	v, err := s.Consume(ctx, pingKey, policy)
	if err != nil {
		t.Fatal(err)
	}
	if v.Blocked || v.Started || v.Usage != 1 {
		t.Fatalf("first Consume = %+v", v)
	}

	clock.Advance(time.Second)
	v, _ = s.Consume(ctx, pingKey, policy)
	if !v.Started {
		t.Fatalf("second Consume = %+v, want window opened", v)
	}

	clock.Advance(time.Second)
	v, _ = s.Consume(ctx, pingKey, policy)
	if !v.Blocked || v.TimeLeft != 9*time.Second {
		t.Fatalf("third Consume = %+v, want blocked with 9s left", v)
	}
	if left, _ := s.TimeLeft(ctx, pingKey); left != 9*time.Second {
		t.Fatalf("TimeLeft = %v, want 9s", left)
	}

	clock.Advance(10 * time.Second)
	v, _ = s.Consume(ctx, pingKey, policy)
	if v.Blocked || v.Usage != 1 {
		t.Fatalf("Consume after expiry = %+v, want fresh cycle", v)
	}
}

func TestValkeyStorePrimitives(t *testing.T) {
	clock := newFakeClock()
	s := newTestValkeyStore(t, clock)
	ctx := context.Background()

	if usage, err := s.UsageCount(ctx, pingKey); err != nil || usage != 0 {
		t.Fatalf("UsageCount on unseen key = %d, %v", usage, err)
	}
	_ = s.RecordUsage(ctx, pingKey)
	_ = s.RecordUsage(ctx, pingKey)
	if usage, _ := s.UsageCount(ctx, pingKey); usage != 2 {
		t.Fatalf("usage = %d, want 2", usage)
	}
	_ = s.ResetUsage(ctx, pingKey)
	if usage, _ := s.UsageCount(ctx, pingKey); usage != 0 {
		t.Fatalf("usage after reset = %d, want 0", usage)
	}

	if err := s.StartCooldown(ctx, pingKey, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if on, _ := s.IsOnCooldown(ctx, pingKey); !on {
		t.Fatal("expected key on cooldown")
	}
	clock.Advance(5 * time.Second)
	if on, _ := s.IsOnCooldown(ctx, pingKey); on {
		t.Fatal("expected cooldown to have expired")
	}
}

func TestValkeyStoreConcurrentConsumeStartsOnce(t *testing.T) {
	clock := newFakeClock()
	s := newTestValkeyStore(t, clock)
	ctx := context.Background()
	policy := Policy{Threshold: 3, Window: time.Minute}

	_ = s.RecordUsage(ctx, pingKey)
	_ = s.RecordUsage(ctx, pingKey)

	var mu sync.Mutex
	started := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Consume(ctx, pingKey, policy)
			if err != nil {
				t.Error(err)
				return
			}
			if v.Started {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Fatalf("window opened %d times, want 1", started)
	}
}

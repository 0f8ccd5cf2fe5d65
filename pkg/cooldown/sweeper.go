package cooldown

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunSweeper calls s.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log zerolog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep cooldowns")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("swept idle cooldown records")
			}
		}
	}
}

package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SourceFunc yields the groups for one run. It is called on every tick so
// edits to a seed file are picked up without a restart.
type SourceFunc func() ([]Group, error)

// jobTimeout bounds a single scheduled run
const jobTimeout = 5 * time.Minute

// NewScheduler returns a cron scheduler running in UTC
func NewScheduler() *cron.Cron {
	return cron.New(cron.WithLocation(time.UTC))
}

// Schedule registers a provisioning run on c at spec (standard 5-field
// cron syntax or a descriptor such as "@hourly").
func Schedule(c *cron.Cron, spec string, p *Provisioner, source SourceFunc) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Provisioning job panicked")
			}
		}()

		groups, err := source()
		if err != nil {
			log.Error().Err(err).Msg("Failed to load provisioning groups")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if report := p.Run(ctx, groups); report.HasFailures() {
			log.Warn().Int("failed", report.Failed).Msg("Scheduled provisioning finished with failures")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule provisioning job: %w", err)
	}
	return id, nil
}

package suite

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Watch runs the suite on schedule until ctx is done. A run that is still
// going when the next one is due is not started twice.
func (r *Runner) Watch(ctx context.Context, schedule string, onResults func(*Results)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(schedule, func() {
		results, err := r.Run(ctx)

		if err != nil {
			log.Warnf("Suite run of %s aborted: %s", r.cfg.Name, err)
			return
		}

		onResults(results)
	}); err != nil {
		return err
	}

	log.Infof("Watching suite %s on schedule %s", r.cfg.Name, schedule)

	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	return nil
}

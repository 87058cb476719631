// Package maintenance runs the periodic housekeeping of a collaboration
// deployment on a cron schedule.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type StreamTrimmer interface {
	TrimStreams(ctx context.Context, maxLen int64) (int, error)
}

type IdleCloser interface {
	CloseIdle(maxIdle time.Duration) int
}

type Purger interface {
	Purge() int
}

type Pruner interface {
	Prune(idle time.Duration) int
}

// Tasks lists what a run touches. Nil members are skipped.
type Tasks struct {
	Streams      StreamTrimmer
	StreamMaxLen int64

	LocalStores IdleCloser
	LocalIdle   time.Duration

	Profiles Purger

	SendLimiter Pruner
	LimiterIdle time.Duration
}

// Report counts what one run cleaned up.
type Report struct {
	StreamsTrimmed  int
	StoresClosed    int
	ProfilesPurged  int
	BucketsPruned   int
	StreamTrimError error
}

type Scheduler struct {
	spec  string
	tasks Tasks
	log   zerolog.Logger
	cron  *cron.Cron
	runTO time.Duration
}

func NewScheduler(spec string, tasks Tasks, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		spec:  spec,
		tasks: tasks,
		log:   log.With().Str("component", "maintenance").Logger(),
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		runTO: 2 * time.Minute,
	}
}

// Start registers the run on the schedule and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTO)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("schedule", s.spec).Msg("maintenance scheduler started")
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs every configured task once.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	var r Report
	t := s.tasks

	if t.Streams != nil && t.StreamMaxLen > 0 {
		r.StreamsTrimmed, r.StreamTrimError = t.Streams.TrimStreams(ctx, t.StreamMaxLen)
		if r.StreamTrimError != nil {
			s.log.Warn().Err(r.StreamTrimError).Msg("trim streams failed")
		}
	}
	if t.LocalStores != nil && t.LocalIdle > 0 {
		r.StoresClosed = t.LocalStores.CloseIdle(t.LocalIdle)
	}
	if t.Profiles != nil {
		r.ProfilesPurged = t.Profiles.Purge()
	}
	if t.SendLimiter != nil && t.LimiterIdle > 0 {
		r.BucketsPruned = t.SendLimiter.Prune(t.LimiterIdle)
	}

	s.log.Info().
		Int("streams_trimmed", r.StreamsTrimmed).
		Int("stores_closed", r.StoresClosed).
		Int("profiles_purged", r.ProfilesPurged).
		Int("buckets_pruned", r.BucketsPruned).
		Msg("maintenance run finished")
	return r
}

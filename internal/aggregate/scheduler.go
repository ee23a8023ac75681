package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/newspulse/newspulse/internal/config"
)

// Jobs enqueues fetch work.
type Jobs interface {
	Enqueue(jobType string, payload interface{}, delay time.Duration) error
}

// Scheduler enqueues one fetch job per configured source on a fixed
// interval, starting with an immediate round.
type Scheduler struct {
	jobs       Jobs
	feeds      []config.FeedConfig
	subreddits []string
	interval   time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. interval values <= 0 default to one
// hour.
func NewScheduler(jobs Jobs, feeds []config.FeedConfig, subreddits []string, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, feeds: feeds, subreddits: subreddits, interval: interval, logger: logger}
}

// Run enqueues fetch rounds until ctx is cancelled. The first round fires
// immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.enqueueRound()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueRound()
		}
	}
}

// EnqueueRound enqueues one fetch job per configured feed and subreddit.
// Returns how many jobs were enqueued.
func (s *Scheduler) EnqueueRound() int {
	return s.enqueueRound()
}

func (s *Scheduler) enqueueRound() int {
	enqueued := 0
	for _, feed := range s.feeds {
		err := s.jobs.Enqueue(JobTypeRSS, RSSPayload{Name: feed.Name, FeedURL: feed.URL}, 0)
		if err != nil {
			s.logger.Error("failed to enqueue rss fetch", "feed", feed.Name, "error", err)
			continue
		}
		enqueued++
	}
	for _, sub := range s.subreddits {
		err := s.jobs.Enqueue(JobTypeReddit, RedditPayload{Subreddit: sub}, 0)
		if err != nil {
			s.logger.Error("failed to enqueue reddit fetch", "subreddit", sub, "error", err)
			continue
		}
		enqueued++
	}
	s.logger.Info("fetch round enqueued", "jobs", enqueued)
	return enqueued
}

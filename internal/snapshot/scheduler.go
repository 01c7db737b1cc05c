package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/salestrack/oppsmon/internal/domain"
)

// RunStatus records the outcome of the most recent scheduled capture of
// one type.
type RunStatus struct {
	LastRun    time.Time `json:"last_run"`
	Success    bool      `json:"success"`
	Snapshots  int       `json:"snapshots"`
	LastError  string    `json:"last_error,omitempty"`
	NextRun    time.Time `json:"next_run"`
	Expression string    `json:"expression"`
}

// Scheduler drives recurring snapshot captures on cron expressions.
type Scheduler struct {
	aggregator *Aggregator
	cron       *cron.Cron

	mu      sync.Mutex
	status  map[domain.SnapshotType]*RunStatus
	entries map[domain.SnapshotType]cron.EntryID
}

// NewScheduler builds a scheduler in the given timezone. Expressions use
// standard five-field cron syntax.
func NewScheduler(aggregator *Aggregator, timezone string) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		aggregator: aggregator,
		cron:       cron.New(cron.WithLocation(location)),
		status:     make(map[domain.SnapshotType]*RunStatus),
		entries:    make(map[domain.SnapshotType]cron.EntryID),
	}, nil
}

// Register schedules one snapshot type on a cron expression.
func (s *Scheduler) Register(snapshotType domain.SnapshotType, expression string) error {
	id, err := s.cron.AddFunc(expression, func() {
		s.run(snapshotType)
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", snapshotType, expression, err)
	}

	s.mu.Lock()
	s.entries[snapshotType] = id
	s.status[snapshotType] = &RunStatus{Expression: expression}
	s.mu.Unlock()

	log.Printf("[SCHEDULER] registered %s snapshots on %q", snapshotType, expression)
	return nil
}

// Start begins executing registered schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running capture to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Status returns a copy of every registered schedule's last-run state.
func (s *Scheduler) Status() map[domain.SnapshotType]RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.SnapshotType]RunStatus, len(s.status))
	for snapshotType, status := range s.status {
		copied := *status
		if id, ok := s.entries[snapshotType]; ok {
			copied.NextRun = s.cron.Entry(id).Next
		}
		out[snapshotType] = copied
	}
	return out
}

func (s *Scheduler) run(snapshotType domain.SnapshotType) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	snapshots, err := s.aggregator.CaptureAll(ctx, snapshotType, CaptureOptions{})

	s.mu.Lock()
	status := s.status[snapshotType]
	status.LastRun = time.Now()
	status.Snapshots = len(snapshots)
	status.Success = err == nil
	status.LastError = ""
	if err != nil {
		status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[SCHEDULER] %s snapshot run finished with errors: %v", snapshotType, err)
		return
	}
	log.Printf("[SCHEDULER] %s snapshot run captured %d scopes", snapshotType, len(snapshots))
}

package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dorm-assignment-backend/internal/metrics"
	"dorm-assignment-backend/internal/notification"
	"dorm-assignment-backend/internal/store"
)

// Result summarises one assignment pass.
type Result struct {
	PassID            string            `json:"pass_id"`
	AssignedCount     int               `json:"assigned_count"`
	StillWaitingCount int               `json:"still_waiting_count"`
	Assignments       []store.Placement `json:"assignments"`
}

// Notifier is told about every placement after a pass commits.
type Notifier interface {
	Dispatch(ctx context.Context, job notification.Job) bool
}

// Service orchestrates assignment passes against a Store.
type Service struct {
	store    store.Store
	log      *zap.Logger
	metrics  *metrics.Collector
	notifier Notifier
	interval time.Duration
	onCommit func()

	now   func() time.Time
	newID func() string

	// mu serialises passes within the process.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records every pass on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithNotifier dispatches a notification job per placement.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithInterval enables the periodic pass run by Run. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// WithCommitHook calls fn after every pass that persisted at least one placement.
func WithCommitHook(fn func()) Option {
	return func(s *Service) { s.onCommit = fn }
}

// WithClock overrides the assignment timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an assignment service.
func NewService(st store.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPass assigns every waiting person it can. The snapshot is read, planned
// and written as one batch; if the write fails nothing is persisted and the
// pass may simply be run again. Notifications go out after the next pass is
// free to start.
func (s *Service) RunPass(ctx context.Context) (Result, error) {
	result, ladder, err := s.runPass(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(result.Assignments) > 0 {
		s.notify(ctx, result.Assignments, ladder)
	}
	return result, nil
}

// runPass does the serialised part of a pass and returns the ladder the plan
// was computed on.
func (s *Service) runPass(ctx context.Context) (Result, []store.RoomSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	passID := s.newID()
	log := s.log.With(zap.String("pass_id", passID))

	people, err := s.store.ListWaiting(ctx)
	if err != nil {
		s.observe(err, 0, 0, start)
		return Result{}, nil, fmt.Errorf("read waiting people: %w", err)
	}
	if len(people) == 0 {
		log.Debug("no waiting people")
		s.observe(nil, 0, 0, start)
		return Result{PassID: passID, Assignments: []store.Placement{}}, nil, nil
	}

	ladder, err := s.store.ListRoomLadder(ctx)
	if err != nil {
		s.observe(err, 0, 0, start)
		return Result{}, nil, fmt.Errorf("read room ladder: %w", err)
	}

	plan := Compute(people, ladder)
	result := Result{
		PassID:            passID,
		AssignedCount:     plan.AssignedCount(),
		StillWaitingCount: plan.WaitingCount(),
		Assignments:       plan.Placements,
	}

	if plan.AssignedCount() == 0 {
		log.Info("no free beds", zap.Int("waiting", plan.WaitingCount()))
		s.observe(nil, 0, plan.WaitingCount(), start)
		return result, ladder, nil
	}

	if err := s.store.ApplyAssignments(ctx, passID, s.now(), plan.Placements); err != nil {
		s.observe(err, 0, 0, start)
		log.Error("assignment pass aborted", zap.Error(err))
		return Result{}, nil, fmt.Errorf("apply assignments: %w", err)
	}

	s.observe(nil, plan.AssignedCount(), plan.WaitingCount(), start)
	log.Info("assignment pass finished",
		zap.Int("assigned", plan.AssignedCount()),
		zap.Int("still_waiting", plan.WaitingCount()),
		zap.Duration("elapsed", time.Since(start)))

	if s.onCommit != nil {
		s.onCommit()
	}
	return result, ladder, nil
}

func (s *Service) observe(err error, assigned, waiting int, start time.Time) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, store.ErrStaleSnapshot):
		outcome = metrics.OutcomeStale
	case err != nil:
		outcome = metrics.OutcomeStorageErr
	case assigned == 0:
		outcome = metrics.OutcomeNoop
	}
	s.metrics.ObservePass(outcome, assigned, waiting, time.Since(start))
}

func (s *Service) notify(ctx context.Context, placements []store.Placement, ladder []store.RoomSlot) {
	if s.notifier == nil {
		return
	}
	rooms := make(map[int64]store.RoomSlot, len(ladder))
	for _, slot := range ladder {
		rooms[slot.RoomID] = slot
	}
	for _, p := range placements {
		slot := rooms[p.RoomID]
		job := notification.Job{PersonID: p.PersonID, DormName: slot.DormName, RoomNumber: slot.Number}
		if !s.notifier.Dispatch(ctx, job) {
			s.log.Warn("notification dispatch abandoned", zap.Int64("person_id", p.PersonID))
			return
		}
	}
}

// Run performs a pass every interval until ctx is done. It returns immediately
// when no interval is configured.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Debug("periodic assignment disabled")
		return
	}
	s.log.Info("starting periodic assignment", zap.Duration("interval", s.interval))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("periodic assignment shutting down")
			return
		case <-timer.C:
			if _, err := s.RunPass(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("periodic assignment pass failed", zap.Error(err))
			}
			timer.Reset(s.interval)
		}
	}
}

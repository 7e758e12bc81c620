// Package scheduler owns the durable trigger store. Triggers are
// persisted rows dispatched by a once-a-minute tick; the store survives
// restarts and fires everything that came due while the process was down.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/storage"
)

// FireFunc delivers a due trigger. For recurring triggers it is also
// responsible for rescheduling via Schedule; the store itself only
// removes once-off rows after a successful callback.
type FireFunc func(t *domain.Trigger) error

type Store struct {
	storage *storage.Storage
	cron    *cron.Cron
	onFire  FireFunc

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(storage *storage.Storage) *Store {
	return &Store{
		storage:  storage,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		inflight: make(map[string]struct{}),
	}
}

func (s *Store) SetFireFunc(fn FireFunc) {
	s.onFire = fn
}

// Schedule persists a trigger. An existing trigger with the same id
// keeps its payload — a different reminder id is logged as a conflict —
// and only the due time is last-write, which is how recurring triggers
// advance after a fire.
func (s *Store) Schedule(t *domain.Trigger) error {
	existing, err := s.storage.GetTrigger(t.ID)
	if err != nil {
		return fmt.Errorf("get trigger: %w", err)
	}
	if existing != nil {
		if existing.ReminderID != t.ReminderID {
			log.Printf("Trigger %s already belongs to reminder %s, keeping its payload", t.ID, existing.ReminderID)
		}
		if err := s.storage.UpdateTriggerDueAt(t.ID, t.DueAt); err != nil {
			return fmt.Errorf("update trigger: %w", err)
		}
		return nil
	}
	if err := s.storage.CreateTrigger(t); err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	return nil
}

// Cancel removes a trigger. Cancelling an unknown id is not an error.
func (s *Store) Cancel(id string) error {
	return s.storage.DeleteTrigger(id)
}

// Start fires everything that came due while the process was down, then
// dispatches on a once-a-minute tick until the context is cancelled.
func (s *Store) Start(ctx context.Context) error {
	if s.onFire == nil {
		return fmt.Errorf("scheduler: fire func is not set")
	}

	missed, err := s.DispatchDue(time.Now())
	if err != nil {
		return fmt.Errorf("dispatch missed triggers: %w", err)
	}
	if missed > 0 {
		log.Printf("Dispatched %d missed trigger(s)", missed)
	}

	if _, err := s.cron.AddFunc("* * * * *", s.tick); err != nil {
		return fmt.Errorf("add trigger tick: %w", err)
	}

	s.cron.Start()
	log.Println("Trigger store started")

	<-ctx.Done()
	return nil
}

func (s *Store) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Trigger store stopped")
}

func (s *Store) tick() {
	if _, err := s.DispatchDue(time.Now()); err != nil {
		log.Printf("Error dispatching triggers: %v", err)
	}
}

// DispatchDue fires every trigger due as of the given instant and
// returns how many were fired. Triggers whose callback fails stay
// persisted and are retried on the next tick.
func (s *Store) DispatchDue(asOf time.Time) (int, error) {
	due, err := s.storage.ListDueTriggers(asOf)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, t := range due {
		if s.fire(t) {
			fired++
		}
	}
	return fired, nil
}

func (s *Store) fire(t *domain.Trigger) bool {
	// A slow callback can outlive the minute; never dispatch the same
	// trigger twice concurrently.
	s.mu.Lock()
	if _, busy := s.inflight[t.ID]; busy {
		s.mu.Unlock()
		return false
	}
	s.inflight[t.ID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, t.ID)
		s.mu.Unlock()
	}()

	if err := s.onFire(t); err != nil {
		log.Printf("Error firing trigger %s: %v", t.ID, err)
		return false
	}

	if t.Recurring {
		// The callback rescheduled it with a new due time.
		return true
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if err := s.storage.DeleteTrigger(t.ID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// Worst case the trigger fires again next tick: delivery is
		// at-least-once, never silently dropped.
		log.Printf("Error deleting fired trigger %s: %v", t.ID, err)
	}
	return true
}

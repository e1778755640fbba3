package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/waqtor/waqtor-server/internal/pkg/distlock"
	"github.com/waqtor/waqtor-server/internal/pkg/logger"
	"github.com/waqtor/waqtor-server/internal/throttle"
)

// lockTTL bounds how long a crashed instance keeps a campaign locked.
const lockTTL = 30 * time.Second

// Sender delivers one rendered message.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// Runner executes campaigns in the background, pacing sends with
// randomized delays and the shared account throttle.
type Runner struct {
	store    *Store
	renderer *Renderer
	sender   Sender
	limiter  *throttle.Limiter // nil disables throttling

	minDelay time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	active  map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
	rnd     *rand.Rand
	rndLock sync.Mutex
}

func NewRunner(store *Store, renderer *Renderer, sender Sender, limiter *throttle.Limiter, minDelay, maxDelay time.Duration) *Runner {
	if minDelay <= 0 {
		minDelay = 3 * time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Runner{
		store:    store,
		renderer: renderer,
		sender:   sender,
		limiter:  limiter,
		minDelay: minDelay,
		maxDelay: maxDelay,
		active:   make(map[uuid.UUID]context.CancelFunc),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches a draft campaign. Running campaigns cannot be started
// twice.
func (r *Runner) Start(ctx context.Context, id uuid.UUID) error {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == StatusRunning {
		return fmt.Errorf("campaign %s is already running", id)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := r.renderer.Validate(c.Template); err != nil {
		return err
	}
	// Guard against the same campaign running on another instance
	// sharing the database.
	lock := distlock.New(r.redisClient(), "campaign:"+id.String(), lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("campaign lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("campaign %s is already running on another instance", id)
	}

	if err := r.store.SetStatus(ctx, id, StatusRunning); err != nil {
		lock.Release(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.active[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, c, lock)

	logger.Info("campaign started", "campaign", c.Name, "recipients", len(c.Recipients))
	return nil
}

// Cancel stops a running campaign. The in-flight message finishes.
func (r *Runner) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels every running campaign and waits for the workers.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.active {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until all running campaigns finish on their own.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, c *Campaign, lock distlock.Lock) {
	defer r.wg.Done()
	defer lock.Release(context.Background())
	defer func() {
		r.mu.Lock()
		delete(r.active, c.ID)
		r.mu.Unlock()
	}()

	sent, failed := 0, 0
	final := StatusCompleted

loop:
	for i, rec := range c.Recipients {
		if i > 0 {
			select {
			case <-ctx.Done():
				final = StatusCancelled
				break loop
			case <-time.After(r.sendDelay()):
			}
		}

		if err := lock.Extend(ctx, lockTTL); err != nil {
			logger.Warn("campaign lock extend failed", "campaign", c.Name, "error", err.Error())
		}

		if err := r.waitForBudget(ctx); err != nil {
			if errors.Is(err, throttle.ErrDailyLimit) {
				logger.Warn("campaign paused by daily limit", "campaign", c.Name, "sent", sent)
				final = StatusFailed
			} else {
				final = StatusCancelled
			}
			break loop
		}

		body, err := r.renderer.Render(c.Template, rec)
		if err != nil {
			logger.Error("campaign render failed", "campaign", c.Name, "recipient", logger.RedactPhone(rec.Phone), "error", err.Error())
			failed++
			continue
		}

		if err := r.sender.SendText(ctx, rec.Phone, body); err != nil {
			logger.Error("campaign send failed", "campaign", c.Name, "recipient", logger.RedactPhone(rec.Phone), "error", err.Error())
			failed++
		} else {
			sent++
		}

		if err := r.store.UpdateCounts(context.Background(), c.ID, sent, failed); err != nil {
			logger.Warn("campaign progress not persisted", "campaign", c.Name, "error", err.Error())
		}
	}

	if final == StatusCompleted && sent == 0 && failed > 0 {
		final = StatusFailed
	}

	if err := r.store.UpdateCounts(context.Background(), c.ID, sent, failed); err != nil {
		logger.Warn("campaign final counts not persisted", "campaign", c.Name, "error", err.Error())
	}
	if err := r.store.SetStatus(context.Background(), c.ID, final); err != nil {
		logger.Error("campaign status update failed", "campaign", c.Name, "error", err.Error())
	}
	logger.Info("campaign finished", "campaign", c.Name, "status", string(final), "sent", sent, "failed", failed)
}

// waitForBudget blocks until the throttle admits one message.
func (r *Runner) waitForBudget(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	for {
		allowed, wait, err := r.limiter.CheckAndIncrement(ctx, 1)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Runner) redisClient() *redis.Client {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Client()
}

func (r *Runner) sendDelay() time.Duration {
	r.rndLock.Lock()
	defer r.rndLock.Unlock()
	span := r.maxDelay - r.minDelay
	if span <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rnd.Int63n(int64(span)))
}

package upload

import (
	"context"
	"fmt"
	"sync"
	"time"
	"yoloview/internal/logger"
	"yoloview/internal/repository"

	"go.uber.org/multierr"
)

const releaseTimeout = 10 * time.Second

// Cleaner deletes the backend artifacts of a request.
type Cleaner interface {
	Cleanup(ctx context.Context, requestID string) error
}

// Janitor deletes backend artifacts that are no longer shown to anybody.
type Janitor struct {
	cleaner Cleaner
	ledger  repository.RequestRepository
	logger  *logger.Logger

	wg sync.WaitGroup
}

// NewJanitor creates a janitor. ledger may be nil, in which case Shutdown has nothing to sweep.
func NewJanitor(cleaner Cleaner, ledger repository.RequestRepository, logger *logger.Logger) *Janitor {
	return &Janitor{cleaner: cleaner, ledger: ledger, logger: logger}
}

// Release cleans up a request in the background. Failures are only logged.
func (j *Janitor) Release(requestID string) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := j.clean(ctx, requestID); err != nil {
			j.logger.Warning("Error cleaning up request %s: %v", requestID, err)
		}
	}()
}

// Shutdown waits for background releases and then cleans every request still
// pending in the ledger.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.wg.Wait()
	if j.ledger == nil {
		return nil
	}

	pending, err := j.ledger.ListPending()
	if err != nil {
		return err
	}

	var errs error
	for _, req := range pending {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, j.clean(ctx, req.RequestID))
	}
	if len(pending) > 0 {
		j.logger.Info("Cleaned up %d pending requests", len(pending)-len(multierr.Errors(errs)))
	}
	return errs
}

func (j *Janitor) clean(ctx context.Context, requestID string) error {
	if err := j.cleaner.Cleanup(ctx, requestID); err != nil {
		return fmt.Errorf("cleanup %s: %w", requestID, err)
	}
	if j.ledger != nil {
		return j.ledger.MarkCleaned(requestID)
	}
	return nil
}

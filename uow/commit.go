package uow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/shortlink-org/go-dispatch/message"
)

// CommitID derives the identifier that tags this scope's storage commits:
// an explicit commit-id header wins, then the transport message identifier,
// else a freshly generated value.
func (u *UnitOfWork) CommitID() string {
	if u.current != nil {
		if id := u.current.Descriptor.Header(message.HeaderCommitID); id != "" {
			return id
		}
		if id := u.current.Descriptor.MessageID; id != "" {
			return id
		}
	}

	return uuid.NewString()
}

// commit issues a commit on every repository held by the scope. Commits run
// concurrently and are joined before returning; there is no cross-repository
// atomicity, so one failed commit does not roll back another. All failures
// are aggregated and surfaced as a persistence failure, leaving the retry
// decision to the caller.
func (u *UnitOfWork) commit(ctx context.Context) error {
	if len(u.repos) == 0 {
		return nil
	}

	commitID := u.CommitID()
	headers := u.Headers()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)

	for kind, repo := range u.repos {
		wg.Add(1)

		go func(kind string, repo Repository) {
			defer wg.Done()

			if err := repo.Commit(ctx, commitID, headers); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("commit aggregate %s: %w: %w", kind, ErrPersistence, err))
				mu.Unlock()
			}
		}(kind, repo)
	}

	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		u.failed = true
		return err
	}

	return nil
}

func (u *UnitOfWork) closeRepositories() error {
	var errs *multierror.Error

	for kind, repo := range u.repos {
		if err := repo.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close repository %s: %w", kind, err))
		}
	}

	return errs.ErrorOrNil()
}

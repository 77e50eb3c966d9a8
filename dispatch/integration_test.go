package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/go-dispatch/message"
	"github.com/shortlink-org/go-dispatch/mutator"
	"github.com/shortlink-org/go-dispatch/registry"
	"github.com/shortlink-org/go-dispatch/uow"
)

type recordingRepository struct {
	mu        sync.Mutex
	commitIDs []string
	headers   []map[string]string
}

func (r *recordingRepository) Commit(_ context.Context, commitID string, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commitIDs = append(r.commitIDs, commitID)
	r.headers = append(r.headers, headers)

	return nil
}

func (r *recordingRepository) Close() error { return nil }

type singleRepositoryFactory struct {
	repo *recordingRepository
}

func (f *singleRepositoryFactory) ForAggregate(_ context.Context, _ string) (uow.Repository, error) {
	return f.repo, nil
}

// uowScope wires a real unit of work into the pipeline: the UoW is both the
// event-sourcing header mutator and the commit participant of the scope.
type uowScope struct {
	unit    *uow.UnitOfWork
	handler registry.Handler
}

func (s *uowScope) Mutators() []mutator.Mutator { return []mutator.Mutator{s.unit} }
func (s *uowScope) Units() []Participant        { return []Participant{s.unit} }

func (s *uowScope) Handler(_ string) (registry.Handler, error) { return s.handler, nil }

func (s *uowScope) Close() error { return s.unit.Close() }

type uowScopeFactory struct {
	factory uow.RepositoryFactory
	handler func(unit *uow.UnitOfWork) registry.Handler
}

func (f *uowScopeFactory) NewScope(_ context.Context) (Scope, error) {
	unit, err := uow.New(f.factory)
	if err != nil {
		return nil, err
	}

	scope := &uowScope{unit: unit}
	scope.handler = f.handler(unit)

	return scope, nil
}

// The OrderPlaced happy path: one handler, no carry-over headers present,
// success on the first call. One outer attempt, one commit, and the commit
// identifier equals the job's message identifier.
func TestOrderPlacedCommitsWithMessageID(t *testing.T) {
	repo := &recordingRepository{}
	committed := make(chan struct{}, 1)

	scopeFactory := &uowScopeFactory{
		factory: &singleRepositoryFactory{repo: repo},
		handler: func(unit *uow.UnitOfWork) registry.Handler {
			return registry.HandlerFunc(func(ctx context.Context, _ message.Envelope) error {
				_, err := unit.RepositoryFor(ctx, "order")
				if err != nil {
					return err
				}

				select {
				case committed <- struct{}{}:
				default:
				}

				return nil
			})
		},
	}

	p, err := New(testLogger(t), testConfig(t), scopeFactory,
		testCache(t, map[string][]string{orderPlacedType: {"order-projection"}}),
		WithMaxParallelism(1),
	)
	require.NoError(t, err)

	startPipeline(t, p)

	env := message.NewEnvelope(
		payloadOrderPlaced{OrderID: "o-1"},
		wmmessage.Metadata{message.HeaderTypeName: "billing.order_placed", message.HeaderTypeVersion: "v1"},
		"msg-order-1",
	)
	require.NoError(t, p.Enqueue(context.Background(), env))

	<-committed

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.commitIDs) == 1
	}, time.Second, time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()

	require.Equal(t, []string{"msg-order-1"}, repo.commitIDs)

	// no carry-over headers on the incoming event: the accumulated map holds
	// the missing sentinel under the carry prefix
	require.Equal(t, message.MissingValue, repo.headers[0][message.CarryPrefix+"correlation_id"])
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gebeya-market/gebeya-backend/pkg/db/dbtest"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	repo := NewRepository(conn)
	return NewService(repo, logger.Nop()), repo, conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()
	actorID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: &actorID, Role: enums.RoleFarmer},
			Data:          map[string]string{"to": "confirmed"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.Equal(t, CurrentVersion, env.Version)
	require.Equal(t, string(enums.EventOrderStatusChanged), env.EventType)
	require.NotEqual(t, uuid.Nil, env.ParsedEventID())
	require.Equal(t, enums.RoleFarmer, env.Actor.Role)
	require.JSONEq(t, `{"to":"confirmed"}`, string(env.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()

	boom := errors.New("domain write failed")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitValidatesInput(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventOrderCreated, AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "bogus", AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderCreated}))

	err := svc.Emit(ctx, conn, DomainEvent{EventType: "bogus", AggregateType: "farm"})
	require.ErrorContains(t, err, "event type")
	require.ErrorContains(t, err, "aggregate type")
	require.ErrorContains(t, err, "aggregate id")
}

func TestEmitStampsOccurredAt(t *testing.T) {
	svc, repo, conn := newTestService(t)
	fixed := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventReviewSubmitted,
		AggregateType: enums.AggregateReview,
		AggregateID:   uuid.New(),
		Data:          map[string]int{"rating": 5},
	}))
	rows, err := repo.FetchUnpublished(ctx, 1)
	require.NoError(t, err)
	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.True(t, fixed.Equal(env.OccurredAt))
}

func TestRepositoryLifecycle(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutGroup,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"n": i},
		}))
	}
	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	attempts, err := repo.MarkFailed(ctx, rows[0].ID, errors.New("pubsub down"))
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	attempts, err = repo.MarkFailed(ctx, rows[0].ID, errors.New("pubsub down"))
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	require.NoError(t, repo.MarkPublished(ctx, rows[1].ID))
	remaining, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, rows[0].ID, remaining[0].ID)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

func TestDLQRepositoryTruncatesErrors(t *testing.T) {
	_, _, conn := newTestService(t)
	ctx := context.Background()
	dlq := NewDLQRepository(conn)

	long := make([]byte, maxErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateCheckoutGroup,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.DLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	found, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, *found.ErrorMessage, maxErrorLen)

	missing, err := dlq.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	rows, err := dlq.List(ctx, DLQFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = dlq.List(ctx, DLQFilter{Reason: enums.DLQReasonNoTopic})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDLQRepositoryRequeue(t *testing.T) {
	_, repo, conn := newTestService(t)
	ctx := context.Background()
	dlq := NewDLQRepository(conn)

	eventID := uuid.New()
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   enums.DLQReasonNoTopic,
		AttemptCount:  3,
	}))

	event, err := dlq.Requeue(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, eventID, event.ID)

	pending, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, eventID, pending[0].ID)
	require.Zero(t, pending[0].AttemptCount)

	parked, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.Nil(t, parked)

	_, err = dlq.Requeue(ctx, eventID)
	require.ErrorIs(t, err, ErrNotParked)
}

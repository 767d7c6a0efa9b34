package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
)

type fakeDLQ struct {
	rows     []models.OutboxDLQ
	filter   outbox.DLQFilter
	requeued []uuid.UUID
}

func (f *fakeDLQ) List(_ context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeDLQ) FindByEventID(_ context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	for i := range f.rows {
		if f.rows[i].EventID == eventID {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDLQ) Requeue(_ context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	f.requeued = append(f.requeued, eventID)
	return &models.OutboxEvent{ID: eventID}, nil
}

func TestDLQListPassesFilter(t *testing.T) {
	eventID := uuid.New()
	store := &fakeDLQ{rows: []models.OutboxDLQ{{EventID: eventID, EventType: enums.EventOrderCreated, ErrorReason: enums.DLQReasonNoTopic, AttemptCount: 2}}}
	var out bytes.Buffer

	if err := runDLQCommand(context.Background(), store, []string{"list", "-reason", "no_topic", "-limit", "5"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.filter.Reason != enums.DLQReasonNoTopic || store.filter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", store.filter)
	}
	if !strings.Contains(out.String(), eventID.String()) || !strings.Contains(out.String(), "no_topic") {
		t.Fatalf("row missing from output:\n%s", out.String())
	}
}

func TestDLQRequeueAndShow(t *testing.T) {
	eventID := uuid.New()
	store := &fakeDLQ{}
	var out bytes.Buffer

	if err := runDLQCommand(context.Background(), store, []string{"requeue", eventID.String()}, &out); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(store.requeued) != 1 || store.requeued[0] != eventID {
		t.Fatalf("expected requeue of %s, got %v", eventID, store.requeued)
	}

	err := runDLQCommand(context.Background(), store, []string{"show", eventID.String()}, &out)
	if !errors.Is(err, outbox.ErrNotParked) {
		t.Fatalf("expected ErrNotParked, got %v", err)
	}
}

func TestDLQRejectsBadInput(t *testing.T) {
	store := &fakeDLQ{}
	for _, args := range [][]string{nil, {"show"}, {"show", "not-a-uuid"}, {"purge"}} {
		if err := runDLQCommand(context.Background(), store, args, &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

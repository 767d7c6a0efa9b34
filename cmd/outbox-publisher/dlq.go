package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
)

const dlqCommandTimeout = 30 * time.Second

type dlqStore interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error)
}

// runDLQCommand handles the operator subcommands:
//
//	outbox-publisher dlq list [-reason max_attempts] [-limit 50]
//	outbox-publisher dlq show <event-id>
//	outbox-publisher dlq requeue <event-id>
func runDLQCommand(ctx context.Context, store dlqStore, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: dlq list|show|requeue")
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		reason := fs.String("reason", "", "filter by reason (max_attempts, no_topic, decode)")
		limit := fs.Int("limit", 50, "maximum rows")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		rows, err := store.List(ctx, outbox.DLQFilter{Reason: enums.OutboxDLQReason(*reason), Limit: *limit})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EVENT ID\tTYPE\tREASON\tATTEMPTS\tFAILED AT")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", row.EventID, row.EventType, row.ErrorReason, row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339))
		}
		return tw.Flush()
	case "show", "requeue":
		if len(args) != 2 {
			return fmt.Errorf("usage: dlq %s <event-id>", args[0])
		}
		eventID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid event id: %w", err)
		}
		if args[0] == "requeue" {
			if _, err := store.Requeue(ctx, eventID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "requeued %s\n", eventID)
			return err
		}
		row, err := store.FindByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		if row == nil {
			return outbox.ErrNotParked
		}
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		_, err = fmt.Fprintf(out, "event:     %s\ntype:      %s\naggregate: %s/%s\nreason:    %s\nattempts:  %d\nerror:     %s\npayload:   %s\n",
			row.EventID, row.EventType, row.AggregateType, row.AggregateID, row.ErrorReason, row.AttemptCount, msg, row.Payload)
		return err
	default:
		return fmt.Errorf("unknown dlq command %q", args[0])
	}
}

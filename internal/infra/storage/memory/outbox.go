package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	appoutbox "listingchat/internal/app/outbox"
)

// Outbox buffers records until Flush. Records added under a stage bound to
// the context wait in that stage and are only published by a Flush with the
// same context. With a Publisher set, Flush sends each record as a
// CloudEvents envelope; records that fail stay buffered for the next flush.
type Outbox struct {
	Publisher   appoutbox.Publisher
	TopicPrefix string
	Source      string
	Logger      *slog.Logger

	mu      sync.Mutex
	records []appoutbox.EventRecord
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if stage, ok := appoutbox.StageFrom(ctx); ok {
		stage.Add(record)
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.mu.Unlock()
	if stage, ok := appoutbox.StageFrom(ctx); ok {
		pending = append(pending, stage.Take()...)
	}
	if o.Publisher == nil {
		if o.Logger != nil {
			for _, rec := range pending {
				o.Logger.DebugContext(ctx, "event dropped, no publisher", "event", rec.Name, "aggregate", rec.Aggregate)
			}
		}
		return nil
	}

	var errs []error
	var failed []appoutbox.EventRecord
	for _, rec := range pending {
		payload, headers, err := appoutbox.Envelope(rec, o.source())
		if err == nil {
			err = o.Publisher.Publish(ctx, appoutbox.TopicFor(o.TopicPrefix, rec.Name), rec.Aggregate, payload, headers)
		}
		if err != nil {
			errs = append(errs, err)
			failed = append(failed, rec)
		}
	}
	if len(failed) > 0 {
		o.mu.Lock()
		o.records = append(failed, o.records...)
		o.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Pending returns a copy of the buffered records.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

func (o *Outbox) source() string {
	if o.Source != "" {
		return o.Source
	}
	return "app://listingchat"
}

var _ appoutbox.Outbox = (*Outbox)(nil)

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	domainlistings "listingchat/internal/domain/listings"
)

// ListingProjection is the writable side of a listing gateway store.
type ListingProjection interface {
	Upsert(ctx context.Context, listing *domainlistings.Listing) error
	Remove(ctx context.Context, id domainlistings.ListingID) error
}

// Deduper records processed event ids.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// ListingProjector applies listing CloudEvents to a projection:
// listing.created/updated/participant_added upsert, listing.deleted removes.
// Other event types are acknowledged and ignored. The listing topic carries
// both the listing service's events and the participant_added events this
// service publishes; both use the snake_case data fields below.
type ListingProjector struct {
	Projection ListingProjection
	Inbox      Deduper
	Logger     *slog.Logger
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

type listingData struct {
	ListingID     string   `json:"listing_id"`
	OwnerID       string   `json:"owner_id"`
	Participants  []string `json:"participants"`
	ParticipantID string   `json:"participant_id"`
}

func (p *ListingProjector) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		p.logger().WarnContext(ctx, "skipping malformed listing event", "offset", msg.Offset, "error", err)
		return nil
	}
	if p.Inbox != nil && evt.ID != "" {
		seen, err := p.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if err := p.apply(ctx, evt); err != nil {
		if p.Inbox != nil && evt.ID != "" {
			if forgetErr := p.Inbox.Forget(ctx, evt.ID); forgetErr != nil {
				p.logger().ErrorContext(ctx, "inbox forget failed, redelivery will be skipped",
					"event_id", evt.ID, "error", forgetErr)
			}
		}
		return err
	}
	return nil
}

func (p *ListingProjector) apply(ctx context.Context, evt cloudEvent) error {
	var data listingData
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			p.logger().WarnContext(ctx, "skipping listing event with bad data", "event_id", evt.ID, "error", err)
			return nil
		}
	}
	if strings.TrimSpace(data.ListingID) == "" {
		return nil
	}
	id := domainlistings.ListingID(data.ListingID)
	switch strings.TrimSuffix(evt.Type, ".v1") {
	case "listing.created", "listing.updated", "listing.participant_added":
		listing := &domainlistings.Listing{ID: id, Owner: domainlistings.UserID(data.OwnerID), UpdatedAt: evt.Time}
		for _, raw := range append(data.Participants, data.ParticipantID) {
			if raw = strings.TrimSpace(raw); raw != "" && !listing.HasParticipant(domainlistings.UserID(raw)) {
				listing.Participants = append(listing.Participants, domainlistings.UserID(raw))
			}
		}
		if err := p.Projection.Upsert(ctx, listing); err != nil {
			return fmt.Errorf("project %s: %w", evt.Type, err)
		}
	case "listing.deleted":
		if err := p.Projection.Remove(ctx, id); err != nil {
			return fmt.Errorf("project %s: %w", evt.Type, err)
		}
	default:
		return nil
	}
	p.logger().DebugContext(ctx, "listing projected", "event", evt.Type, "listing_id", id)
	return nil
}

func (p *ListingProjector) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

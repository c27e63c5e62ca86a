package listings

import (
	"time"
)

type ParticipantAddedEvent struct {
	ListingID     ListingID `json:"listing_id"`
	OwnerID       UserID    `json:"owner_id"`
	ParticipantID UserID    `json:"participant_id"`
	At            time.Time `json:"at"`
}

func (e ParticipantAddedEvent) EventName() string     { return "listing.participant_added" }
func (e ParticipantAddedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ParticipantAddedEvent) OccurredAt() time.Time { return e.At }

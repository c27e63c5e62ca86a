package listings

import (
	"strings"
	"time"

	"listingchat/internal/domain/shared/errkind"
	"listingchat/internal/domain/shared/events"
)

var (
	ErrInvalidListing          = errkind.New(errkind.Validation, "listings: listing does not exist or has no owner")
	ErrForbidden               = errkind.New(errkind.Forbidden, "listings: only the listing owner may change the roster")
	ErrParticipantRequired     = errkind.New(errkind.Validation, "listings: participant id is required")
	ErrCollaboratorUnavailable = errkind.New(errkind.Unavailable, "listings: listing gateway unavailable")
)

type ListingID string

// UserID identifies an already authenticated caller.
type UserID string

// Listing is the slice of the external listing the chat core cares about:
// who owns it and who is on its roster.
type Listing struct {
	ID           ListingID
	Owner        UserID
	Participants []UserID
	UpdatedAt    time.Time
	events.EventRecorder
}

func (l *Listing) HasParticipant(id UserID) bool {
	for _, p := range l.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// AddParticipant appends id to the roster. It reports false, and records no
// event, when id is already present.
func (l *Listing) AddParticipant(actor, id UserID, now time.Time) (bool, error) {
	if actor != l.Owner {
		return false, ErrForbidden
	}
	id = UserID(strings.TrimSpace(string(id)))
	if id == "" {
		return false, ErrParticipantRequired
	}
	if l.HasParticipant(id) {
		return false, nil
	}
	l.Participants = append(l.Participants, id)
	l.UpdatedAt = now.UTC()
	l.Record(ParticipantAddedEvent{ListingID: l.ID, OwnerID: l.Owner, ParticipantID: id, At: l.UpdatedAt})
	return true, nil
}

// Clone returns a copy that does not share the roster slice.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	return &Listing{
		ID:           l.ID,
		Owner:        l.Owner,
		Participants: append([]UserID(nil), l.Participants...),
		UpdatedAt:    l.UpdatedAt,
	}
}

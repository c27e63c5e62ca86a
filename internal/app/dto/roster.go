package dto

import domainlistings "listingchat/internal/domain/listings"

// RosterChange reports the outcome of adding a participant. Added is false
// when the participant was already on the roster.
type RosterChange struct {
	ListingID     string `json:"listing_id"`
	ParticipantID string `json:"participant_id"`
	Added         bool   `json:"added"`
}

type ParticipantList struct {
	ListingID    string   `json:"listing_id"`
	OwnerID      string   `json:"owner_id"`
	Participants []string `json:"participants"`
}

// RosterStatus tells whether a conversation's participant is on the roster
// of the conversation's listing.
type RosterStatus struct {
	ConversationID string `json:"conversation_id"`
	ListingID      string `json:"listing_id"`
	ParticipantID  string `json:"participant_id"`
	OnRoster       bool   `json:"on_roster"`
}

func UserIDs(ids []domainlistings.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

package conversations

import (
	"time"

	"github.com/google/uuid"

	"listingchat/internal/app/outbox"
)

// newID returns a time-ordered id unless gen overrides it.
func newID(gen func() string) string {
	if gen != nil {
		return gen()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now()
}

func encoderOrDefault(enc outbox.EventEncoder) outbox.EventEncoder {
	if enc != nil {
		return enc
	}
	return outbox.JSONEventEncoder{}
}

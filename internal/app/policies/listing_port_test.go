package policies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	domainlistings "listingchat/internal/domain/listings"
	"listingchat/internal/domain/shared/errkind"
)

func TestGatewayFailure(t *testing.T) {
	assert.NoError(t, GatewayFailure(nil))
	assert.ErrorIs(t, GatewayFailure(domainlistings.ErrInvalidListing), domainlistings.ErrInvalidListing)

	wrapped := GatewayFailure(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, wrapped, domainlistings.ErrCollaboratorUnavailable)
	assert.Equal(t, errkind.Unavailable, errkind.Of(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")

	assert.Equal(t, errkind.Unavailable, errkind.Of(GatewayFailure(context.DeadlineExceeded)))
}

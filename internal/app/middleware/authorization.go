package middleware

import (
	"context"
	"strings"

	"listingchat/internal/app/commands"
	"listingchat/internal/app/queries"
	"listingchat/internal/domain/shared/errkind"
)

var ErrCallerRequired = errkind.New(errkind.Forbidden, "middleware: caller identity required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// CallerScoped messages act on behalf of an authenticated caller.
type CallerScoped interface {
	Caller() string
}

// RequireCaller rejects caller-scoped messages that carry no caller id. It
// does not authenticate; identity is established upstream.
type RequireCaller struct{}

func (RequireCaller) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(CallerScoped)
	if !ok {
		return nil
	}
	if strings.TrimSpace(scoped.Caller()) == "" {
		return ErrCallerRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

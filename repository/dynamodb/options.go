package dynamodb

import (
	"context"

	"github.com/w-h-a/triage/repository"
)

type clientKey struct{}

// WithClient hands the repository a ready client instead of building one
// from the default AWS configuration chain.
func WithClient(client API) repository.Option {
	return func(o *repository.Options) {
		o.Context = context.WithValue(o.Context, clientKey{}, client)
	}
}

func ClientFrom(ctx context.Context) (API, bool) {
	client, ok := ctx.Value(clientKey{}).(API)
	return client, ok
}

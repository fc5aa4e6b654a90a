package server

import "context"

type Server interface {
	// Run serves until ctx is done, then shuts down gracefully.
	Run(ctx context.Context) error
}

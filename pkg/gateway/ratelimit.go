package gateway

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped backend. Remote APIs such as
// Drive enforce per-user quotas; a full sync would otherwise burst.
type RateLimited struct {
	Backend
	limiter *rate.Limiter
}

// NewRateLimited returns b unchanged when rps <= 0.
func NewRateLimited(b Backend, rps float64) Backend {
	if rps <= 0 {
		return b
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Backend: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) List(ctx context.Context, q Query) ([]RemoteFile, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Backend.List(ctx, q)
}

func (r *RateLimited) Get(ctx context.Context, fileID string) (*RemoteFile, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Backend.Get(ctx, fileID)
}

func (r *RateLimited) Download(ctx context.Context, file *RemoteFile) (io.ReadCloser, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Backend.Download(ctx, file)
}

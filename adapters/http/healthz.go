package billhttp

import (
	"context"
	"net/http"
)

// Pinger is satisfied by pgxpool.Pool directly; wrap anything else with
// PingerFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler answers 200 when every provided dependency pings, 503
// otherwise. Nil pingers are skipped so optional dependencies stay optional.
func HealthHandler(deps ...Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, d := range deps {
			if d == nil {
				continue
			}
			if err := d.Ping(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Package api exposes the market over HTTP: bid submission, the demand of
// the open session and the clearing journal.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/flexmarket/api/bids"
	"github.com/kilianp07/flexmarket/api/rounds"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/infra/logger"
)

// Config enables the HTTP API when Addr is set. A non-empty Token is
// required as a bearer token on every request.
type Config struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// Enabled reports whether the API should be served.
func (c Config) Enabled() bool { return c.Addr != "" }

// NewMux routes the API. The rounds endpoint is only mounted when store is
// non-nil.
func NewMux(m bids.Market, store journal.Store, token string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /api/bids", RequireToken(token, bids.NewSubmitHandler(m)))
	mux.Handle("GET /api/demand", RequireToken(token, bids.NewDemandHandler(m)))
	if store != nil {
		mux.Handle("GET /api/rounds", RequireToken(token, rounds.NewHandler(store)))
	}
	return mux
}

// RequireToken rejects requests lacking "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve runs h on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log := logger.New("api")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package gc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
)

// StartDebugHTTP starts a lightweight HTTP server that exposes
// diagnostic endpoints for a collector context:
//
//	GET /gc/stats   -> JSON of Stats (pacing counters, phase)
//	GET /gc/census  -> JSON of Census (per kind/color/age inventory)
//	GET /gc/tuning  -> JSON of the live tunables
//	GET /gc/phase   -> current phase as plain text
//
// The endpoints read live collector state without synchronization; on a
// busy runtime they return an advisory snapshot. It returns a shutdown
// function compatible with http.Server.Shutdown.
func StartDebugHTTP(c *Context, addr string) (func(ctx context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: DebugMux(c)}
	go func() { _ = srv.Serve(ln) }()
	return srv.Shutdown, nil
}

// DebugMux returns the diagnostic handler tree served by StartDebugHTTP.
func DebugMux(c *Context) *http.ServeMux {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(v)
	}

	mux.HandleFunc("/gc/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.MemoryStats())
	})
	mux.HandleFunc("/gc/census", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.TakeCensus())
	})
	mux.HandleFunc("/gc/tuning", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.CurrentTuning())
	})
	mux.HandleFunc("/gc/phase", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(c.Phase().String() + "\n"))
	})
	return mux
}

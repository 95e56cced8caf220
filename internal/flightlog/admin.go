package flightlog

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/flight.bridge/internal/httputil"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts tailsql over the flight log at /debug/flightlog/
// and the chart pages next to it.
func (l *Log) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/flightlog/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+l.path, l.DB, &tailsql.DBOptions{
		Label: "Flight log",
	})
	debug.Handle("flightlog/", "Flight log SQL", tsql.NewMux())

	// ?session=<id> selects a session (default latest), ?max_points=N
	// bounds the payload.
	debug.HandleFunc("flightlog-chart", "Flight log chart", func(w http.ResponseWriter, r *http.Request) {
		s, ok := l.sessionFromRequest(w, r)
		if !ok {
			return
		}
		frames, err := l.Frames(s.ID, 0)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load frames: %v", err), http.StatusInternalServerError)
			return
		}
		transitions, err := l.Transitions(s.ID)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load transitions: %v", err), http.StatusInternalServerError)
			return
		}
		maxPoints := 0
		if mp := r.URL.Query().Get("max_points"); mp != "" {
			if v, err := strconv.Atoi(mp); err == nil && v >= 100 && v <= 50000 {
				maxPoints = v
			}
		}

		var buf bytes.Buffer
		if err := RenderChart(&buf, s, frames, transitions, maxPoints); err != nil {
			http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleSilentFunc("flightlog-sessions.json", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.AllowMethod(w, r, http.MethodGet) {
			return
		}
		sessions, err := l.Sessions()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sessions)
	})

	debug.HandleSilentFunc("flightlog-altitude.png", func(w http.ResponseWriter, r *http.Request) {
		s, ok := l.sessionFromRequest(w, r)
		if !ok {
			return
		}
		frames, err := l.Frames(s.ID, 0)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load frames: %v", err), http.StatusInternalServerError)
			return
		}
		transitions, err := l.Transitions(s.ID)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load transitions: %v", err), http.StatusInternalServerError)
			return
		}
		p, err := AltitudePlot(s.Name, frames, transitions)
		if err != nil {
			http.Error(w, fmt.Sprintf("plot error: %v", err), http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := WritePNG(&buf, p); err != nil {
			http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})
	return nil
}

func (l *Log) sessionFromRequest(w http.ResponseWriter, r *http.Request) (Session, bool) {
	if !httputil.AllowMethod(w, r, http.MethodGet) {
		return Session{}, false
	}
	id := r.URL.Query().Get("session")
	sessions, err := l.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return Session{}, false
	}
	for _, s := range sessions {
		if id == "" || s.ID == id {
			return s, true
		}
	}
	httputil.NotFound(w, "no such session")
	return Session{}, false
}

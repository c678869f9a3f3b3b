package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/bootstrap"
	"github.com/GoCodeAlone/bootstrap/maindom"
)

// StatusSource is the part of the runtime the status endpoint reads.
type StatusSource interface {
	State() *bootstrap.RuntimeState
	Factory() *bootstrap.Factory
	MainDom() *maindom.MainDom
}

// Status is the JSON body of GET /runtime/state.
type Status struct {
	Level            string `json:"level"`
	Reason           string `json:"reason"`
	CodeVersion      string `json:"codeVersion,omitempty"`
	InstalledVersion string `json:"installedVersion,omitempty"`
	MainDom          bool   `json:"mainDom"`
	Degraded         bool   `json:"degraded"`
	Failure          string `json:"failure,omitempty"`
}

// Healthy reports whether the runtime reached a level other than BootFailed.
func (s Status) Healthy() bool {
	return s.Level != bootstrap.LevelBootFailed.String() &&
		s.Level != bootstrap.LevelUnknown.String() &&
		s.Level != bootstrap.LevelBooting.String()
}

func currentStatus(src StatusSource) Status {
	state := src.State()
	if state == nil {
		return Status{Level: bootstrap.LevelUnknown.String(), Reason: bootstrap.ReasonUnknown.String()}
	}
	s := Status{
		Level:            state.Level().String(),
		Reason:           state.Reason().String(),
		CodeVersion:      state.CodeVersion(),
		InstalledVersion: state.InstalledVersion(),
	}
	if md := src.MainDom(); md != nil {
		s.MainDom = md.IsMainDom()
	}
	if f := src.Factory(); f != nil {
		s.Degraded = f.Degraded()
	}
	if failure := state.BootFailure(); failure != nil {
		s.Failure = failure.Error()
	}
	return s
}

// NewStatusRouter serves the runtime status endpoints.
func NewStatusRouter(src StatusSource) chi.Router {
	r := chi.NewRouter()
	r.Route("/runtime", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, currentStatus(src))
		})
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			status := currentStatus(src)
			code := http.StatusOK
			if !status.Healthy() {
				code = http.StatusServiceUnavailable
			}
			writeJSON(w, code, map[string]any{
				"healthy": status.Healthy(),
				"level":   status.Level,
			})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

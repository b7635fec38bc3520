package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inscribe-ai/docwatch/pkg/notify"
	"github.com/inscribe-ai/docwatch/pkg/quota"
	"github.com/inscribe-ai/docwatch/pkg/registry"
)

// Deps carries the tracked state the observation handlers read from.
// Handlers are read-only: mutations go through the CLI, not this server.
type Deps struct {
	Registry *registry.Registry
	Quota    *quota.Tracker
	Events   *notify.EventLog
}

// Jobs returns the registry snapshot, newest first.
func (d Deps) Jobs(w http.ResponseWriter, r *http.Request) {
	records := d.Registry.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  records,
		"count": len(records),
	})
}

// Job returns a single job record by ID.
func (d Deps) Job(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	rec, err := d.Registry.Get(id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Quota returns the last known remaining-uploads count.
func (d Deps) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	var (
		remaining int
		known     bool
	)
	if d.Quota != nil {
		remaining, known = d.Quota.Remaining()
	}
	body := map[string]any{"known": known}
	if known {
		body["remaining"] = remaining
	}
	writeJSON(w, http.StatusOK, body)
}

// EventsTail returns retained notifications, oldest first.
func (d Deps) EventsTail(w http.ResponseWriter, r *http.Request) {
	var events []notify.Notification
	if d.Events != nil {
		events = d.Events.Recent()
	}
	if events == nil {
		events = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

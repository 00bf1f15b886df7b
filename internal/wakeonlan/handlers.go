package wakeonlan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/server"
	"github.com/HerbHall/wolgate/pkg/models"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleDeleteDevice},
		{Method: "GET", Path: "/devices/{id}/properties/{name}", Handler: m.handleGetProperty},
		{Method: "PUT", Path: "/devices/{id}/properties/{name}", Handler: m.handlePutProperty},
		{Method: "POST", Path: "/devices/{id}/actions/{name}", Handler: m.handleInvokeAction},
		{Method: "GET", Path: "/devices/{id}/actions", Handler: m.handleListActions},
		{Method: "GET", Path: "/devices/{id}/history", Handler: m.handleHistory},
		{Method: "POST", Path: "/discover", Handler: m.handleDiscover},
		{Method: "GET", Path: "/events", Handler: m.handleEvents},
	}
}

// handleListDevices returns every registered device.
func (m *Module) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.snapshots())
}

// handleGetDevice returns a single device.
func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := m.adapter.Device(r.PathValue("id"))
	if !ok {
		server.NotFound(w, "device not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// handleDeleteDevice unregisters a device. It is rediscovered by the next
// POST /discover if it is still configured.
func (m *Module) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if !m.adapter.UnregisterDevice(r.PathValue("id")) {
		server.NotFound(w, "device not found", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetProperty returns the cached property value; it never probes.
func (m *Module) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, ok := m.property(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{p.Name(): p.Read()})
}

// handlePutProperty always fails: the property is read-only.
func (m *Module) handlePutProperty(w http.ResponseWriter, r *http.Request) {
	p, ok := m.property(w, r)
	if !ok {
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	err := p.Write(body[p.Name()])

	w.Header().Set("Allow", "GET")
	server.MethodNotAllowed(w, err.Error(), r.URL.Path)
}

func (m *Module) property(w http.ResponseWriter, r *http.Request) (*Property, bool) {
	d, ok := m.adapter.Device(r.PathValue("id"))
	if !ok {
		server.NotFound(w, "device not found", r.URL.Path)
		return nil, false
	}
	p, ok := d.Property(r.PathValue("name"))
	if !ok {
		server.NotFound(w, "property not found", r.URL.Path)
		return nil, false
	}
	return p, true
}

// handleInvokeAction runs an action. 202 means the packet was sent, not
// that the host woke up.
func (m *Module) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	rec, err := m.Invoke(r.Context(), r.PathValue("id"), r.PathValue("name"), SourceHTTP)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, rec)
	case errors.Is(err, ErrDeviceNotFound):
		server.NotFound(w, "device not found", r.URL.Path)
	case errors.Is(err, ErrUnknownAction):
		server.BadRequest(w, "unknown action "+strconv.Quote(r.PathValue("name")), r.URL.Path)
	case errors.Is(err, ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		server.RateLimited(w, err.Error(), r.URL.Path)
	case errors.Is(err, ErrWakeFailed):
		server.BadGateway(w, err.Error(), r.URL.Path)
	default:
		server.InternalError(w, err.Error(), r.URL.Path)
	}
}

// handleListActions returns recent action records for a device.
func (m *Module) handleListActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := m.adapter.Device(id); !ok {
		server.NotFound(w, "device not found", r.URL.Path)
		return
	}
	recs, err := m.Actions(r.Context(), id, parseLimit(r, 50))
	if err != nil {
		m.logger.Warn("failed to list actions", zap.String("device_id", id), zap.Error(err))
		server.InternalError(w, "failed to list actions", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleHistory returns reachability transitions for a device.
func (m *Module) handleHistory(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		server.ServiceUnavailable(w, "history store not available", r.URL.Path)
		return
	}
	id := r.PathValue("id")
	if _, ok := m.adapter.Device(id); !ok {
		server.NotFound(w, "device not found", r.URL.Path)
		return
	}
	transitions, err := m.store.ListTransitions(r.Context(), id, parseLimit(r, 100))
	if err != nil {
		m.logger.Warn("failed to list transitions", zap.String("device_id", id), zap.Error(err))
		server.InternalError(w, "failed to list history", r.URL.Path)
		return
	}
	if transitions == nil {
		transitions = []models.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

// handleDiscover re-runs discovery for configured devices not yet registered.
func (m *Module) handleDiscover(w http.ResponseWriter, r *http.Request) {
	added, err := m.Discover(r.Context())
	if err != nil {
		server.BadGateway(w, err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":   added,
		"pending": nonNil(m.adapter.Pending()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseLimit extracts a limit query parameter with a default value.
func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

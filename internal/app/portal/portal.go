// Package portal serves the captive configuration form while the device is
// in access-point posture.
package portal

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ecocheck/agent/internal/adapters/observability"
	"github.com/ecocheck/agent/internal/domain"
	"github.com/ecocheck/agent/internal/ports"
)

//go:embed form.html
var configPage []byte

const savedPage = `<html><body><h2>Configuration saved!</h2><p>Device will restart and connect to WiFi.</p></body></html>`

// ProfileSaver persists a network profile durably.
type ProfileSaver interface {
	Save(p domain.NetworkProfile) error
}

type Handler struct {
	store   ProfileSaver
	onSaved func()
	obs     ports.Observability
	router  *mux.Router
}

// NewHandler builds the portal routes. onSaved runs after a profile has been
// committed; the agent uses it to schedule the reboot.
func NewHandler(store ProfileSaver, onSaved func(), obs ports.Observability) *Handler {
	h := &Handler{
		store:   store,
		onSaved: onSaved,
		obs:     obs,
		router:  mux.NewRouter(),
	}
	h.router.Use(h.loggingMiddleware)
	h.router.HandleFunc("/", h.form).Methods(http.MethodGet)
	h.router.HandleFunc("/save", h.save).Methods(http.MethodPost)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(configPage)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Missing SSID or Password", http.StatusBadRequest)
		return
	}
	_, hasName := r.Form["ssid"]
	_, hasSecret := r.Form["password"]
	if !hasName || !hasSecret {
		http.Error(w, "Missing SSID or Password", http.StatusBadRequest)
		return
	}

	profile, err := domain.NewNetworkProfile(r.Form.Get("ssid"), r.Form.Get("password"))
	if err != nil {
		http.Error(w, "Missing SSID or Password", http.StatusBadRequest)
		return
	}

	if err := h.store.Save(profile); err != nil {
		h.obs.LogError("profile_save_failed", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}
	h.obs.IncCounter(observability.PortalSavesTotal, 1)
	h.obs.LogInfo("profile_saved", ports.Field{Key: "ssid", Value: profile.NetworkName})

	if h.onSaved != nil {
		h.onSaved()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(savedPage))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.obs.LogInfo("portal_request",
			ports.Field{Key: "method", Value: r.Method},
			ports.Field{Key: "path", Value: r.URL.Path},
			ports.Field{Key: "status", Value: rec.status},
			ports.Field{Key: "duration", Value: time.Since(start)})
	})
}

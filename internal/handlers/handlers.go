package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/pubsub"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/views"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "session_id"

// Probe checks that the external services are reachable
type Probe func(ctx context.Context) error

// Options configures the HTTP surface
type Options struct {
	DefaultCoachID int
	// Probe backs /api/health and /readyz. nil means always healthy.
	Probe Probe
}

// Handlers serves the coach and manage-team screens as HTML pages and as a
// JSON API carrying the same view models.
type Handlers struct {
	svc      *roster.Service
	sessions *views.Sessions
	bus      pubsub.Bus
	opts     Options
	pages    map[string]*template.Template
}

// New creates the handlers and parses the embedded page templates
func New(svc *roster.Service, sessions *views.Sessions, bus pubsub.Bus, opts Options) (*Handlers, error) {
	if opts.DefaultCoachID <= 0 {
		opts.DefaultCoachID = 1
	}

	pages := make(map[string]*template.Template)
	for _, page := range []string{"coach.html", "team.html"} {
		tmpl, err := template.New(page).Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		pages[page] = tmpl
	}

	return &Handlers{
		svc:      svc,
		sessions: sessions,
		bus:      bus,
		opts:     opts,
		pages:    pages,
	}, nil
}

var templateFuncs = template.FuncMap{
	"labels": func() map[string]string {
		return map[string]string{
			"CreateTeam":   views.LabelCreateTeam,
			"SelectedTeam": views.LabelSelectedTeam,
			"Select":       views.LabelSelect,
			"Search":       views.LabelSearch,
			"NoTeams":      views.MsgNoTeams,
		}
	},
}

// Register mounts every route on mux
func (h *Handlers) Register(mux *http.ServeMux) {
	// Pages
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /coaches/{id}", h.CoachPage)
	mux.HandleFunc("GET /manage-team/{id}", h.TeamPage)

	// Coach API
	mux.HandleFunc("GET /api/coaches/{id}", h.GetCoach)
	mux.HandleFunc("POST /api/coaches/{id}/teams", h.CreateTeam)
	mux.HandleFunc("POST /api/coaches/{id}/select", h.SelectTeam)
	mux.HandleFunc("DELETE /api/coaches/{id}/teams/{teamId}", h.DeleteTeam)
	mux.HandleFunc("POST /api/coaches/{id}/teams/{teamId}/delete", h.DeleteTeam)
	mux.HandleFunc("POST /api/coaches/{id}/modal", h.CoachModal)
	mux.HandleFunc("GET /api/coaches/{id}/stream", h.CoachStream)

	// Team API
	mux.HandleFunc("GET /api/teams/{id}", h.GetTeam)
	mux.HandleFunc("POST /api/teams/{id}/pokemons", h.AddPokemon)
	mux.HandleFunc("DELETE /api/teams/{id}/pokemons/{pokemonId}", h.RemovePokemon)
	mux.HandleFunc("POST /api/teams/{id}/pokemons/{pokemonId}/delete", h.RemovePokemon)
	mux.HandleFunc("POST /api/teams/{id}/search", h.SearchPokemon)
	mux.HandleFunc("POST /api/teams/{id}/modal", h.TeamModal)
	mux.HandleFunc("GET /api/teams/{id}/stream", h.TeamStream)

	// Catalog
	mux.HandleFunc("GET /api/pokemons", h.ListPokemons)

	// SSE for realtime updates
	mux.HandleFunc("GET /api/events", h.EventsSSE)

	// Health check endpoints
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /healthz", h.Liveness)
	mux.HandleFunc("GET /readyz", h.Readiness)
}

// intent is the body of every screen action, sent as JSON or as a form
type intent struct {
	Name      string `json:"name"`
	TeamID    string `json:"teamId"`
	PokemonID int    `json:"pokemonId"`
	Text      string `json:"text"`
	Open      *bool  `json:"open"`
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func decodeIntent(r *http.Request) (intent, error) {
	var in intent

	if !isForm(r) {
		if r.Body == nil || r.ContentLength == 0 {
			return in, nil
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			return in, &apperrors.ValidationError{Message: "invalid JSON body"}
		}
		return in, nil
	}

	if err := r.ParseForm(); err != nil {
		return in, &apperrors.ValidationError{Message: "invalid form body"}
	}
	in.Name = r.PostFormValue("name")
	in.TeamID = r.PostFormValue("teamId")
	in.Text = r.PostFormValue("text")
	if raw := r.PostFormValue("pokemonId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return in, &apperrors.ValidationError{Field: "pokemonId", Message: "must be a number"}
		}
		in.PokemonID = id
	}
	if raw := r.PostFormValue("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			return in, &apperrors.ValidationError{Field: "open", Message: "must be true or false"}
		}
		in.Open = &open
	}
	return in, nil
}

// session returns the caller's session, issuing a cookie for new ones
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) *views.Session {
	var id string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}

	session, created := h.sessions.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    session.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return session
}

func coachIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, apperrors.ErrInvalidID
	}
	return id, nil
}

func pokemonIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("pokemonId"))
	if err != nil {
		return 0, apperrors.ErrInvalidID
	}
	return id, nil
}

// statusFor maps an error class to an HTTP status
func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsTransport(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error":   views.Message(err),
		"details": err.Error(),
	})
}

// respond finishes an intent: forms go back to the page, JSON callers get
// the refreshed view, with the error status when the action failed.
func respond[V any](w http.ResponseWriter, r *http.Request, page string, err error, load func() V) {
	if isForm(r) {
		http.Redirect(w, r, page, http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, load())
}

// Home redirects to the default coach
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, fmt.Sprintf("/coaches/%d", h.opts.DefaultCoachID), http.StatusSeeOther)
}

// CoachPage renders the coach screen
func (h *Handlers) CoachPage(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		http.Error(w, views.Message(err), http.StatusBadRequest)
		return
	}

	view := h.session(w, r).Coach(coachID).Load(r.Context())
	h.render(w, "coach.html", view)
}

// TeamPage renders the manage-team screen
func (h *Handlers) TeamPage(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("id")
	view := h.session(w, r).Team(teamID).Load(r.Context())
	h.render(w, "team.html", view)
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	tmpl, ok := h.pages[page]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		logger.Error("Failed to render page", "page", page, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetCoach returns the coach view model
func (h *Handlers) GetCoach(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view := h.session(w, r).Coach(coachID).Load(r.Context())
	writeJSON(w, http.StatusOK, view)
}

// CreateTeam submits the create-team form of a coach
func (h *Handlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	screen := h.session(w, r).Coach(coachID)
	screen.SetTeamName(in.Name)

	logger.Info("Creating team", "coach_id", coachID)
	err = screen.CreateTeam(r.Context())
	respond(w, r, fmt.Sprintf("/coaches/%d", coachID), err, func() views.CoachView {
		return screen.Load(r.Context())
	})
}

// SelectTeam marks one of the coach's teams as selected
func (h *Handlers) SelectTeam(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	screen := h.session(w, r).Coach(coachID)

	logger.Info("Selecting team", "coach_id", coachID, "team_id", in.TeamID)
	err = screen.SelectTeam(r.Context(), in.TeamID)
	respond(w, r, fmt.Sprintf("/coaches/%d", coachID), err, func() views.CoachView {
		return screen.Load(r.Context())
	})
}

// DeleteTeam deletes one of the coach's teams
func (h *Handlers) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	teamID := r.PathValue("teamId")

	screen := h.session(w, r).Coach(coachID)

	logger.Info("Deleting team", "coach_id", coachID, "team_id", teamID)
	err = screen.DeleteTeam(r.Context(), teamID)
	respond(w, r, fmt.Sprintf("/coaches/%d", coachID), err, func() views.CoachView {
		return screen.Load(r.Context())
	})
}

// CoachModal opens or closes the create-team form
func (h *Handlers) CoachModal(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	screen := h.session(w, r).Coach(coachID)
	if in.Open == nil || *in.Open {
		screen.OpenModal()
	} else {
		screen.CloseModal()
	}
	if in.Name != "" {
		screen.SetTeamName(in.Name)
	}

	respond(w, r, fmt.Sprintf("/coaches/%d", coachID), nil, screen.View)
}

// GetTeam returns the manage-team view model
func (h *Handlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	view := h.session(w, r).Team(r.PathValue("id")).Load(r.Context())
	writeJSON(w, http.StatusOK, view)
}

// AddPokemon adds a pokemon picked from the catalog to the roster
func (h *Handlers) AddPokemon(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("id")
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if in.PokemonID <= 0 {
		writeError(w, &apperrors.ValidationError{Field: "pokemonId", Message: "pokemon id is required"})
		return
	}

	screen := h.session(w, r).Team(teamID)

	logger.Info("Adding pokemon", "team_id", teamID, "pokemon_id", in.PokemonID)
	err = screen.AddPokemon(r.Context(), in.PokemonID)
	respond(w, r, "/manage-team/"+url.PathEscape(teamID), err, func() views.TeamView {
		return screen.Load(r.Context())
	})
}

// RemovePokemon removes a pokemon from the roster
func (h *Handlers) RemovePokemon(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("id")
	pokemonID, err := pokemonIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	screen := h.session(w, r).Team(teamID)

	logger.Info("Removing pokemon", "team_id", teamID, "pokemon_id", pokemonID)
	err = screen.RemovePokemon(r.Context(), pokemonID)
	respond(w, r, "/manage-team/"+url.PathEscape(teamID), err, func() views.TeamView {
		return screen.Load(r.Context())
	})
}

// SearchPokemon sets the picker search filter
func (h *Handlers) SearchPokemon(w http.ResponseWriter, r *http.Request) {
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	teamID := r.PathValue("id")
	screen := h.session(w, r).Team(teamID)
	screen.SetSearchFilter(in.Text)

	respond(w, r, "/manage-team/"+url.PathEscape(teamID), nil, screen.View)
}

// TeamModal opens or closes the pokemon picker
func (h *Handlers) TeamModal(w http.ResponseWriter, r *http.Request) {
	in, err := decodeIntent(r)
	if err != nil {
		writeError(w, err)
		return
	}

	teamID := r.PathValue("id")
	screen := h.session(w, r).Team(teamID)
	if in.Open == nil || *in.Open {
		screen.OpenModal()
	} else {
		screen.CloseModal()
	}

	respond(w, r, "/manage-team/"+url.PathEscape(teamID), nil, screen.View)
}

// ListPokemons returns the catalog, optionally filtered by ?q=
func (h *Handlers) ListPokemons(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AllPokemons(r.Context())
	if err != nil {
		logger.Error("Failed to load pokemon catalog", "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": views.MsgPokemonLoadError})
		return
	}
	writeJSON(w, http.StatusOK, roster.FilterPokemons(list, r.URL.Query().Get("q")))
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *Handlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe to events
	eventChan := h.bus.Subscribe()
	defer h.bus.Unsubscribe(eventChan)

	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	// Send initial connection message
	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush()
		}
	}
}

// EventView is the SSE event type carrying a refreshed view model
const EventView = "view"

type viewEvent[V any] struct {
	Type    string `json:"type"`
	Payload V      `json:"payload"`
}

// CoachStream pushes the coach view each time the coach's data changes
func (h *Handlers) CoachStream(w http.ResponseWriter, r *http.Request) {
	coachID, err := coachIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	streamView(w, r, h.session(w, r).Coach(coachID).Watch)
}

// TeamStream pushes the manage-team view each time the team's data changes
func (h *Handlers) TeamStream(w http.ResponseWriter, r *http.Request) {
	streamView(w, r, h.session(w, r).Team(r.PathValue("id")).Watch)
}

// streamView serves one screen's changes as Server-Sent Events. Only the
// latest view is kept when the client falls behind.
func streamView[V any](w http.ResponseWriter, r *http.Request, watch func(context.Context, func(V)) <-chan struct{}) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	latest := make(chan V, 1)
	done := watch(ctx, func(v V) {
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- v:
		default:
		}
	})
	defer func() {
		cancel()
		<-done
	}()

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case v := <-latest:
			data, err := json.Marshal(viewEvent[V]{Type: EventView, Payload: v})
			if err != nil {
				logger.Error("Failed to encode view event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
		case <-ctx.Done():
			logger.Debug("View stream client disconnected", "path", r.URL.Path)
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush()
		}
	}
}

// Health reports the state of the service and its dependencies
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if h.opts.Probe != nil {
		if err := h.opts.Probe(r.Context()); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks["remote"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			checks["remote"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		checks["remote"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	checks["cache"] = map[string]interface{}{
		"status":  "healthy",
		"entries": h.svc.Cache().Len(),
	}
	checks["sessions"] = map[string]interface{}{
		"status": "healthy",
		"active": h.sessions.Len(),
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// Liveness handles Kubernetes liveness probes
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// Readiness handles Kubernetes readiness probes
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.opts.Probe != nil {
		if err := h.opts.Probe(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "not_ready",
				"reason":    "remote_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

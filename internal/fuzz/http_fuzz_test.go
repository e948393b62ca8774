package fuzz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/handlers"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/pubsub"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/remote"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/views"
)

func init() {
	// Initialize logger for tests
	logger.InitWriter(os.Stderr, "error")
}

// newMux wires the handlers over a fresh in-memory backend with one seeded team
func newMux(t *testing.T) (*http.ServeMux, string) {
	t.Helper()

	mem := remote.NewMemory()
	team := mem.SeedTeam(1, "Kanto", 1, 4, 7)
	svc := roster.NewService(query.NewCache(), mem.Services(), roster.Options{})
	h, err := handlers.New(svc, views.NewSessions(svc, time.Hour), pubsub.New(), handlers.Options{DefaultCoachID: 1})
	if err != nil {
		t.Fatalf("handlers.New: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return mux, team.ID
}

func serve(mux *http.ServeMux, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

// checkStatus fails on any 5xx other than the bad gateway of a remote failure
func checkStatus(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if w.Code >= 500 && w.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
}

// FuzzHTTPCreateTeam fuzzes the create team endpoint
func FuzzHTTPCreateTeam(f *testing.F) {
	// Seed corpus with valid examples
	f.Add(`{"name":"Fuego"}`)
	f.Add(`{"name":""}`)
	f.Add(`{"name":"   "}`)
	f.Add(`{"name":` + `"` + string(bytes.Repeat([]byte("a"), 200)) + `"}`)
	f.Add(`{"name":123}`)

	f.Fuzz(func(t *testing.T, data string) {
		mux, _ := newMux(t)
		w := serve(mux, http.MethodPost, "/api/coaches/1/teams", "application/json", data)
		checkStatus(t, w)
	})
}

// FuzzHTTPAddPokemon fuzzes the add pokemon endpoint
func FuzzHTTPAddPokemon(f *testing.F) {
	// Seed corpus
	f.Add(`{"pokemonId":25}`)
	f.Add(`{"pokemonId":-1}`)
	f.Add(`{"pokemonId":"25"}`)
	f.Add(`{}`)

	f.Fuzz(func(t *testing.T, data string) {
		mux, teamID := newMux(t)
		w := serve(mux, http.MethodPost, "/api/teams/"+teamID+"/pokemons", "application/json", data)
		checkStatus(t, w)
	})
}

// FuzzHTTPFormIntents fuzzes form encoded screen actions
func FuzzHTTPFormIntents(f *testing.F) {
	// Seed corpus
	f.Add("name=Agua")
	f.Add("teamId=x&open=maybe")
	f.Add("pokemonId=abc")
	f.Add("%zz")

	f.Fuzz(func(t *testing.T, data string) {
		mux, teamID := newMux(t)
		for _, target := range []string{
			"/api/coaches/1/teams",
			"/api/coaches/1/select",
			"/api/coaches/1/modal",
			"/api/teams/" + teamID + "/pokemons",
			"/api/teams/" + teamID + "/search",
		} {
			w := serve(mux, http.MethodPost, target, "application/x-www-form-urlencoded", data)
			checkStatus(t, w)
		}
	})
}

// FuzzHTTPPathIDs fuzzes the ids taken from the URL path
func FuzzHTTPPathIDs(f *testing.F) {
	// Seed corpus
	f.Add("1", "25")
	f.Add("-5", "0")
	f.Add("abc", "x")
	f.Add("99999999999999999999", "1")

	f.Fuzz(func(t *testing.T, coachID, pokemonID string) {
		mux, teamID := newMux(t)
		for _, route := range []struct{ method, path string }{
			{http.MethodGet, "/api/coaches/" + coachID},
			{http.MethodGet, "/api/teams/" + coachID},
			{http.MethodPost, "/api/teams/" + teamID + "/pokemons/" + pokemonID + "/delete"},
		} {
			target := (&url.URL{Path: route.path}).String()
			w := serve(mux, route.method, target, "", "")
			checkStatus(t, w)
		}
	})
}

// FuzzInvalidationEvent fuzzes decoding of invalidation events received from peers
func FuzzInvalidationEvent(f *testing.F) {
	// Seed various event payloads
	f.Add(`{"type":"query:invalidate","payload":{"origin":"a","key":["teamCoach","1"]}}`)
	f.Add(`{"type":"query:invalidate","payload":{"key":[1,2]}}`)
	f.Add(`{"type":"query:invalidate","payload":null}`)
	f.Add(`{"type":"other"}`)
	f.Add(`null`)

	f.Fuzz(func(t *testing.T, data string) {
		var event pubsub.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return
		}

		key, _, ok := event.Invalidation()
		if !ok {
			return
		}

		// Should not panic on any decoded key
		cache := query.NewCache()
		cache.Invalidate(query.Key(key))
	})
}

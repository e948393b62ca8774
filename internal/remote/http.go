package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
)

// HTTPConfig holds the base URLs of the external services
type HTTPConfig struct {
	TeamCoachURL string
	TeamsURL     string
	PokemonURL   string
	// Client is used for every request. nil means http.DefaultClient.
	Client *http.Client
}

// HTTPClient talks JSON to the external REST services. It never retries and
// adds no timeout of its own; callers bound requests through the context.
type HTTPClient struct {
	teamCoachURL string
	teamsURL     string
	pokemonURL   string
	client       *http.Client
}

// NewHTTPClient validates the base URLs and builds a client
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	urls := map[string]string{
		"TEAM_COACH_URL": cfg.TeamCoachURL,
		"TEAMS_URL":      cfg.TeamsURL,
		"POKEMON_URL":    cfg.PokemonURL,
	}
	for name, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &apperrors.ConfigurationError{Message: fmt.Sprintf("%s must be an absolute URL, got %q", name, raw)}
		}
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPClient{
		teamCoachURL: strings.TrimRight(cfg.TeamCoachURL, "/"),
		teamsURL:     strings.TrimRight(cfg.TeamsURL, "/"),
		pokemonURL:   strings.TrimRight(cfg.PokemonURL, "/"),
		client:       client,
	}, nil
}

// Services exposes the client through the per-service interfaces
func (c *HTTPClient) Services() Services {
	return Services{
		TeamCoach: httpTeamCoach{c},
		Teams:     httpTeams{c},
		Pokemon:   httpPokemon{c},
	}
}

// do sends body (if any) as JSON and decodes the response into out (if any).
// A 404 becomes a NotFoundError for entity/id.
func (c *HTTPClient) do(ctx context.Context, method, target, entity, id string, body, out any) error {
	op := method + " " + entity

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &apperrors.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &apperrors.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &apperrors.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("Remote call", "method", method, "url", target, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NotFound(entity, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var cause error
		if len(bytes.TrimSpace(msg)) > 0 {
			cause = fmt.Errorf("%s", bytes.TrimSpace(msg))
		}
		return &apperrors.TransportError{Op: op, StatusCode: resp.StatusCode, Err: cause}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperrors.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

type httpTeamCoach struct{ c *HTTPClient }

func (s httpTeamCoach) GetByCoach(ctx context.Context, coachID int) (*models.TeamCoach, error) {
	id := strconv.Itoa(coachID)
	var link models.TeamCoach
	if err := s.c.do(ctx, http.MethodGet, s.c.teamCoachURL+"/entrenador/"+url.PathEscape(id), "team coach", id, nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (s httpTeamCoach) Create(ctx context.Context, link *models.TeamCoach) (*models.TeamCoach, error) {
	var created models.TeamCoach
	if err := s.c.do(ctx, http.MethodPost, s.c.teamCoachURL, "team coach", "", link, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s httpTeamCoach) Update(ctx context.Context, id string, link *models.TeamCoach) (*models.TeamCoach, error) {
	var updated models.TeamCoach
	if err := s.c.do(ctx, http.MethodPut, s.c.teamCoachURL+"/"+url.PathEscape(id), "team coach", id, link, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

type httpTeams struct{ c *HTTPClient }

func (s httpTeams) Get(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := s.c.do(ctx, http.MethodGet, s.c.teamsURL+"/"+url.PathEscape(id), "team", id, nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s httpTeams) Create(ctx context.Context, input *models.TeamInput) (*models.Team, error) {
	var team models.Team
	if err := s.c.do(ctx, http.MethodPost, s.c.teamsURL, "team", "", input, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s httpTeams) Update(ctx context.Context, id string, input *models.TeamInput) (*models.Team, error) {
	var team models.Team
	if err := s.c.do(ctx, http.MethodPut, s.c.teamsURL+"/"+url.PathEscape(id), "team", id, input, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s httpTeams) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, s.c.teamsURL+"/"+url.PathEscape(id), "team", id, nil, nil)
}

type httpPokemon struct{ c *HTTPClient }

func (s httpPokemon) List(ctx context.Context) ([]models.Pokemon, error) {
	var list []models.Pokemon
	if err := s.c.do(ctx, http.MethodGet, s.c.pokemonURL, "pokemon", "", nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Pokemon{}
	}
	return list, nil
}

func (s httpPokemon) Get(ctx context.Context, id int) (*models.Pokemon, error) {
	sid := strconv.Itoa(id)
	var p models.Pokemon
	if err := s.c.do(ctx, http.MethodGet, s.c.pokemonURL+"/"+sid, "pokemon", sid, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

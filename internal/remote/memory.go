package remote

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
)

// Operation names used for call counts and fault injection
const (
	OpGetTeamCoach    = "teamCoach.GetByCoach"
	OpCreateTeamCoach = "teamCoach.Create"
	OpUpdateTeamCoach = "teamCoach.Update"
	OpGetTeam         = "teams.Get"
	OpCreateTeam      = "teams.Create"
	OpUpdateTeam      = "teams.Update"
	OpDeleteTeam      = "teams.Delete"
	OpListPokemon     = "pokemon.List"
	OpGetPokemon      = "pokemon.Get"
)

// Memory implements the three external services in memory. It stands in
// for them in development mode and in tests.
type Memory struct {
	mu      sync.RWMutex
	links   map[int]*models.TeamCoach
	teams   map[string]*models.Team
	pokemon []models.Pokemon
	calls   map[string]int
	faults  map[string]error
	latency time.Duration
}

// NewMemory creates an empty store with the default pokemon catalog
func NewMemory() *Memory {
	return &Memory{
		links:   make(map[int]*models.TeamCoach),
		teams:   make(map[string]*models.Team),
		pokemon: getDefaultPokemon(),
		calls:   make(map[string]int),
		faults:  make(map[string]error),
	}
}

// Services exposes the store through the per-service interfaces
func (m *Memory) Services() Services {
	return Services{
		TeamCoach: memTeamCoach{m},
		Teams:     memTeams{m},
		Pokemon:   memPokemon{m},
	}
}

// Calls returns how many times op was invoked
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Fail makes every following call to op return err. A nil err clears it.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// SetLatency delays every call by d
func (m *Memory) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SeedTeam creates a team for coachID and links it, creating the link when
// the coach has none yet.
func (m *Memory) SeedTeam(coachID int, name string, pokemonIDs ...int) *models.Team {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[coachID]
	if !ok {
		link = &models.TeamCoach{ID: genID("tc"), CoachID: coachID, TeamIDs: []string{}}
		m.links[coachID] = link
	}

	team := &models.Team{
		ID:         genID("team"),
		Name:       name,
		CoachID:    strconv.Itoa(coachID),
		PokemonIDs: append([]int{}, pokemonIDs...),
	}
	m.teams[team.ID] = team
	link.TeamIDs = append(link.TeamIDs, team.ID)

	t := copyTeam(team)
	return &t
}

// enter records a call to op and applies latency and injected faults
func (m *Memory) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	fault := m.faults[op]
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return &apperrors.TransportError{Op: op, Err: err}
	}
	return fault
}

type memTeamCoach struct{ m *Memory }

func (s memTeamCoach) GetByCoach(ctx context.Context, coachID int) (*models.TeamCoach, error) {
	if err := s.m.enter(ctx, OpGetTeamCoach); err != nil {
		return nil, err
	}

	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	link, ok := s.m.links[coachID]
	if !ok {
		return nil, apperrors.NotFound("team coach", strconv.Itoa(coachID))
	}
	l := copyLink(link)
	return &l, nil
}

func (s memTeamCoach) Create(ctx context.Context, link *models.TeamCoach) (*models.TeamCoach, error) {
	if err := s.m.enter(ctx, OpCreateTeamCoach); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.links[link.CoachID]; ok {
		return nil, &apperrors.TransportError{
			Op:         OpCreateTeamCoach,
			StatusCode: http.StatusConflict,
			Err:        fmt.Errorf("coach %d already has a team link", link.CoachID),
		}
	}

	created := copyLink(link)
	created.ID = genID("tc")
	s.m.links[created.CoachID] = &created

	out := copyLink(&created)
	return &out, nil
}

func (s memTeamCoach) Update(ctx context.Context, id string, link *models.TeamCoach) (*models.TeamCoach, error) {
	if err := s.m.enter(ctx, OpUpdateTeamCoach); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for coachID, existing := range s.m.links {
		if existing.ID != id {
			continue
		}
		updated := copyLink(link)
		updated.ID = id
		updated.CoachID = coachID
		s.m.links[coachID] = &updated

		out := copyLink(&updated)
		return &out, nil
	}
	return nil, apperrors.NotFound("team coach", id)
}

type memTeams struct{ m *Memory }

func (s memTeams) Get(ctx context.Context, id string) (*models.Team, error) {
	if err := s.m.enter(ctx, OpGetTeam); err != nil {
		return nil, err
	}

	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	team, ok := s.m.teams[id]
	if !ok {
		return nil, apperrors.NotFound("team", id)
	}
	t := copyTeam(team)
	return &t, nil
}

func (s memTeams) Create(ctx context.Context, input *models.TeamInput) (*models.Team, error) {
	if err := s.m.enter(ctx, OpCreateTeam); err != nil {
		return nil, err
	}
	if err := checkTeamInput(OpCreateTeam, input); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	team := &models.Team{
		ID:         genID("team"),
		Name:       input.Name,
		CoachID:    input.CoachID,
		PokemonIDs: append([]int{}, input.PokemonIDs...),
	}
	s.m.teams[team.ID] = team

	// The service owns the coach link side of team creation
	if coachID, err := strconv.Atoi(input.CoachID); err == nil {
		if link, ok := s.m.links[coachID]; ok {
			link.TeamIDs = append(link.TeamIDs, team.ID)
		}
	}

	t := copyTeam(team)
	return &t, nil
}

func (s memTeams) Update(ctx context.Context, id string, input *models.TeamInput) (*models.Team, error) {
	if err := s.m.enter(ctx, OpUpdateTeam); err != nil {
		return nil, err
	}
	if err := checkTeamInput(OpUpdateTeam, input); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	team, ok := s.m.teams[id]
	if !ok {
		return nil, apperrors.NotFound("team", id)
	}
	team.Name = input.Name
	team.PokemonIDs = append([]int{}, input.PokemonIDs...)
	if input.CoachID != "" {
		team.CoachID = input.CoachID
	}

	t := copyTeam(team)
	return &t, nil
}

// Delete removes the team only. Links keep referencing it.
func (s memTeams) Delete(ctx context.Context, id string) error {
	if err := s.m.enter(ctx, OpDeleteTeam); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.teams[id]; !ok {
		return apperrors.NotFound("team", id)
	}
	delete(s.m.teams, id)
	return nil
}

type memPokemon struct{ m *Memory }

func (s memPokemon) List(ctx context.Context) ([]models.Pokemon, error) {
	if err := s.m.enter(ctx, OpListPokemon); err != nil {
		return nil, err
	}

	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	list := make([]models.Pokemon, len(s.m.pokemon))
	for i, p := range s.m.pokemon {
		list[i] = copyPokemon(p)
	}
	return list, nil
}

func (s memPokemon) Get(ctx context.Context, id int) (*models.Pokemon, error) {
	if err := s.m.enter(ctx, OpGetPokemon); err != nil {
		return nil, err
	}

	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, p := range s.m.pokemon {
		if p.ID == id {
			out := copyPokemon(p)
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("pokemon", strconv.Itoa(id))
}

// checkTeamInput mirrors the teams service rejecting malformed writes
func checkTeamInput(op string, input *models.TeamInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &apperrors.TransportError{Op: op, StatusCode: http.StatusBadRequest, Err: fmt.Errorf("nombre is required")}
	}
	if len(input.PokemonIDs) > models.MaxRosterSize {
		return &apperrors.TransportError{Op: op, StatusCode: http.StatusBadRequest, Err: fmt.Errorf("a team holds at most %d pokemon", models.MaxRosterSize)}
	}
	return nil
}

func copyLink(l *models.TeamCoach) models.TeamCoach {
	out := *l
	out.TeamIDs = slices.Clone(l.TeamIDs)
	if out.TeamIDs == nil {
		out.TeamIDs = []string{}
	}
	return out
}

func copyTeam(t *models.Team) models.Team {
	out := *t
	out.PokemonIDs = slices.Clone(t.PokemonIDs)
	if out.PokemonIDs == nil {
		out.PokemonIDs = []int{}
	}
	return out
}

func copyPokemon(p models.Pokemon) models.Pokemon {
	p.Types = slices.Clone(p.Types)
	return p
}

func genID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func sprite(id int) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%d.png", id)
}

func getDefaultPokemon() []models.Pokemon {
	return []models.Pokemon{
		{ID: 1, Name: "Bulbasaur", Image: sprite(1), Types: []string{"planta", "veneno"}},
		{ID: 2, Name: "Ivysaur", Image: sprite(2), Types: []string{"planta", "veneno"}},
		{ID: 3, Name: "Venusaur", Image: sprite(3), Types: []string{"planta", "veneno"}},
		{ID: 4, Name: "Charmander", Image: sprite(4), Types: []string{"fuego"}},
		{ID: 5, Name: "Charmeleon", Image: sprite(5), Types: []string{"fuego"}},
		{ID: 6, Name: "Charizard", Image: sprite(6), Types: []string{"fuego", "volador"}},
		{ID: 7, Name: "Squirtle", Image: sprite(7), Types: []string{"agua"}},
		{ID: 8, Name: "Wartortle", Image: sprite(8), Types: []string{"agua"}},
		{ID: 9, Name: "Blastoise", Image: sprite(9), Types: []string{"agua"}},
		{ID: 25, Name: "Pikachu", Image: sprite(25), Types: []string{"eléctrico"}},
		{ID: 39, Name: "Jigglypuff", Image: sprite(39), Types: []string{"normal", "hada"}},
		{ID: 52, Name: "Meowth", Image: sprite(52), Types: []string{"normal"}},
		{ID: 54, Name: "Psyduck", Image: sprite(54), Types: []string{"agua"}},
		{ID: 94, Name: "Gengar", Image: sprite(94), Types: []string{"fantasma", "veneno"}},
		{ID: 133, Name: "Eevee", Image: sprite(133), Types: []string{"normal"}},
		{ID: 143, Name: "Snorlax", Image: sprite(143), Types: []string{"normal"}},
		{ID: 150, Name: "Mewtwo", Image: sprite(150), Types: []string{"psíquico"}},
		{ID: 151, Name: "Mew", Image: sprite(151), Types: []string{"psíquico"}},
	}
}

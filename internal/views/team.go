package views

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/mutation"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
)

// SlotView is one roster position as rendered
type SlotView struct {
	Index   int             `json:"index"`
	Empty   bool            `json:"empty"`
	Pokemon *models.Pokemon `json:"pokemon,omitempty"`
}

// TeamPending flags the team screen writes in flight
type TeamPending struct {
	Add    bool `json:"add"`
	Remove bool `json:"remove"`
}

// TeamView is the render-ready state of the manage-team screen
type TeamView struct {
	TeamID     string `json:"teamId"`
	Name       string `json:"name"`
	Loading    bool   `json:"loading"`
	Refreshing bool   `json:"refreshing"`
	// SlotsLoading is set while the roster pokemon are being fetched
	SlotsLoading bool             `json:"slotsLoading"`
	Slots        []SlotView       `json:"slots"`
	Full         bool             `json:"full"`
	Error        string           `json:"error,omitempty"`
	PickerOpen   bool             `json:"pickerOpen"`
	Search       string           `json:"search"`
	Catalog      []models.Pokemon `json:"catalog"`
	SelectedID   int              `json:"selectedPokemonId,omitempty"`
	ActionError  string           `json:"actionError,omitempty"`
	Pending      TeamPending      `json:"pending"`
}

// TeamScreen holds one browser's state of a manage-team page
type TeamScreen struct {
	svc    *roster.Service
	teamID string
	query  *roster.TeamPokemonQuery
	add    *mutation.Mutation[roster.RosterChange, *models.Team]
	remove *mutation.Mutation[roster.RosterChange, *models.Team]

	mu         sync.Mutex
	pickerOpen bool
	search     string
	selected   int
	catalog    []models.Pokemon
	catalogErr error
	catalogSet bool
	actionErr  error
}

// NewTeamScreen creates the screen for teamID
func NewTeamScreen(svc *roster.Service, teamID string) *TeamScreen {
	s := &TeamScreen{
		svc:    svc,
		teamID: teamID,
		query:  svc.TeamPokemon(teamID),
		add:    svc.AddPokemon(),
		remove: svc.RemovePokemon(),
	}

	s.add.OnSuccess(func(roster.RosterChange, *models.Team) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.selected = 0
		s.actionErr = nil
	})
	s.add.OnError(func(_ roster.RosterChange, err error) { s.setActionErr(err) })
	s.remove.OnSuccess(func(roster.RosterChange, *models.Team) { s.setActionErr(nil) })
	s.remove.OnError(func(_ roster.RosterChange, err error) { s.setActionErr(err) })

	return s
}

// TeamID returns the team this screen shows
func (s *TeamScreen) TeamID() string {
	return s.teamID
}

// Load evaluates the team roster and the pokemon catalog and returns the view
func (s *TeamScreen) Load(ctx context.Context) TeamView {
	s.query.Load(ctx)
	s.loadCatalog(ctx)
	return s.View()
}

func (s *TeamScreen) loadCatalog(ctx context.Context) {
	list, err := s.svc.AllPokemons(ctx)
	if err != nil {
		logger.Warn("Failed to load pokemon catalog", "team", s.teamID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogSet = true
	s.catalogErr = err
	if err == nil {
		s.catalog = list
	}
}

// Watch reloads the view whenever a mutation touches the team's data
func (s *TeamScreen) Watch(ctx context.Context, onChange func(TeamView)) <-chan struct{} {
	return s.query.Watch(ctx, func(roster.TeamPokemonResult) {
		if onChange != nil {
			onChange(s.View())
		}
	})
}

// View returns the view from the last load without fetching
func (s *TeamScreen) View() TeamView {
	res := s.query.Result()

	s.mu.Lock()
	v := TeamView{
		TeamID:      s.teamID,
		PickerOpen:  s.pickerOpen,
		Search:      s.search,
		SelectedID:  s.selected,
		ActionError: Message(s.actionErr),
		Catalog:     roster.FilterPokemons(s.catalog, s.search),
	}
	catalogLoading := !s.catalogSet
	catalogErr := s.catalogErr
	s.mu.Unlock()

	if v.Catalog == nil {
		v.Catalog = []models.Pokemon{}
	}
	v.Pending = TeamPending{Add: s.add.Pending(), Remove: s.remove.Pending()}

	// The team record gates the page; the roster pokemon only gate the slots
	v.Loading = catalogLoading || (res.Loading() && !res.HasRoot)
	v.SlotsLoading = res.Loading() && res.HasRoot
	v.Refreshing = res.Refreshing

	switch {
	case catalogErr != nil || res.ChildErr != nil:
		v.Error = MsgPokemonLoadError
	case res.RootErr != nil:
		v.Error = MsgTeamLoadError
	}

	if res.HasRoot {
		v.Name = res.Root.Name
		v.Full = len(res.Root.PokemonIDs) >= models.MaxRosterSize
	}

	v.Slots = make([]SlotView, 0, models.MaxRosterSize)
	for _, slot := range roster.Slots(res.Children) {
		v.Slots = append(v.Slots, SlotView{Index: slot.Index, Empty: slot.Empty(), Pokemon: slot.Pokemon})
	}
	return v
}

// OpenModal shows the pokemon picker
func (s *TeamScreen) OpenModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickerOpen = true
}

// CloseModal hides the pokemon picker
func (s *TeamScreen) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickerOpen = false
}

// SetSearchFilter filters the picker catalog by name
func (s *TeamScreen) SetSearchFilter(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = text
}

// AddPokemon picks pokemonID from the catalog and adds it to the roster.
// The picker closes right away; the selection clears once the write succeeds.
func (s *TeamScreen) AddPokemon(ctx context.Context, pokemonID int) error {
	s.mu.Lock()
	s.selected = pokemonID
	s.pickerOpen = false
	s.mu.Unlock()

	_, err := s.add.Trigger(ctx, roster.RosterChange{TeamID: s.teamID, PokemonID: pokemonID})
	return err
}

// RemovePokemon takes the first pokemonID out of the roster
func (s *TeamScreen) RemovePokemon(ctx context.Context, pokemonID int) error {
	_, err := s.remove.Trigger(ctx, roster.RosterChange{TeamID: s.teamID, PokemonID: pokemonID})
	return err
}

func (s *TeamScreen) setActionErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionErr = err
}

package views

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/mutation"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
)

// TeamItem is one row of the coach's team list
type TeamItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	Pokemon  int    `json:"pokemonCount"`
}

// CoachPending flags the coach screen writes in flight
type CoachPending struct {
	Create bool `json:"create"`
	Select bool `json:"select"`
	Delete bool `json:"delete"`
}

// CoachView is the render-ready state of the coach screen
type CoachView struct {
	CoachID        int          `json:"coachId"`
	Loading        bool         `json:"loading"`
	Refreshing     bool         `json:"refreshing"`
	SelectedTeamID string       `json:"selectedTeamId,omitempty"`
	Teams          []TeamItem   `json:"teams"`
	NoTeams        bool         `json:"noTeams"`
	Errors         []string     `json:"errors,omitempty"`
	ModalOpen      bool         `json:"modalOpen"`
	TeamName       string       `json:"teamName"`
	ActionError    string       `json:"actionError,omitempty"`
	Pending        CoachPending `json:"pending"`
}

// CoachScreen holds one browser's state of a coach page
type CoachScreen struct {
	coachID int
	query   *roster.CoachTeamsQuery
	create  *mutation.Mutation[roster.NewTeam, *models.Team]
	choose  *mutation.Mutation[roster.TeamRef, *models.TeamCoach]
	remove  *mutation.Mutation[roster.TeamRef, struct{}]

	mu        sync.Mutex
	modalOpen bool
	teamName  string
	actionErr error
}

// NewCoachScreen creates the screen for coachID
func NewCoachScreen(svc *roster.Service, coachID int) *CoachScreen {
	s := &CoachScreen{
		coachID: coachID,
		query:   svc.CoachTeams(coachID),
		create:  svc.CreateTeam(),
		choose:  svc.SelectTeam(),
		remove:  svc.DeleteTeam(),
	}

	s.create.OnSuccess(func(roster.NewTeam, *models.Team) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.teamName = ""
		s.modalOpen = false
		s.actionErr = nil
	})
	s.create.OnError(func(_ roster.NewTeam, err error) { s.setActionErr(err) })
	s.choose.OnSuccess(func(roster.TeamRef, *models.TeamCoach) { s.setActionErr(nil) })
	s.choose.OnError(func(_ roster.TeamRef, err error) { s.setActionErr(err) })
	s.remove.OnSuccess(func(roster.TeamRef, struct{}) { s.setActionErr(nil) })
	s.remove.OnError(func(_ roster.TeamRef, err error) { s.setActionErr(err) })

	return s
}

// CoachID returns the coach this screen shows
func (s *CoachScreen) CoachID() int {
	return s.coachID
}

// Load evaluates the coach's teams and returns the view
func (s *CoachScreen) Load(ctx context.Context) CoachView {
	s.query.Load(ctx)
	return s.View()
}

// Watch reloads the view whenever a mutation touches the coach's data
func (s *CoachScreen) Watch(ctx context.Context, onChange func(CoachView)) <-chan struct{} {
	return s.query.Watch(ctx, func(roster.CoachTeamsResult) {
		if onChange != nil {
			onChange(s.View())
		}
	})
}

// View returns the view from the last load without fetching
func (s *CoachScreen) View() CoachView {
	res := s.query.Result()

	s.mu.Lock()
	v := CoachView{
		CoachID:     s.coachID,
		ModalOpen:   s.modalOpen,
		TeamName:    s.teamName,
		ActionError: Message(s.actionErr),
	}
	s.mu.Unlock()

	v.Loading = res.Loading()
	v.Refreshing = res.Refreshing
	v.Pending = CoachPending{
		Create: s.create.Pending(),
		Select: s.choose.Pending(),
		Delete: s.remove.Pending(),
	}

	if res.ChildErr != nil {
		v.Errors = append(v.Errors, MsgTeamsLoadError)
	}
	if res.RootErr != nil {
		v.Errors = append(v.Errors, MsgCoachLoadError)
	}

	v.Teams = []TeamItem{}
	if res.HasRoot {
		v.SelectedTeamID = res.Root.SelectedTeamID
		for _, team := range res.Children {
			v.Teams = append(v.Teams, TeamItem{
				ID:       team.ID,
				Name:     team.Name,
				Selected: team.ID == res.Root.SelectedTeamID,
				Pokemon:  len(team.PokemonIDs),
			})
		}
	}
	v.NoTeams = !v.Loading && (!res.HasRoot || len(res.Root.TeamIDs) == 0)
	return v
}

// OpenModal shows the create-team form
func (s *CoachScreen) OpenModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = true
}

// CloseModal hides the create-team form, keeping what was typed
func (s *CoachScreen) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = false
}

// SetTeamName updates the create-team form field
func (s *CoachScreen) SetTeamName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamName = name
}

// CreateTeam submits the create-team form
func (s *CoachScreen) CreateTeam(ctx context.Context) error {
	s.mu.Lock()
	name := s.teamName
	s.mu.Unlock()

	_, err := s.create.Trigger(ctx, roster.NewTeam{CoachID: s.coachID, Name: name})
	return err
}

// SelectTeam makes teamID the coach's selected team
func (s *CoachScreen) SelectTeam(ctx context.Context, teamID string) error {
	_, err := s.choose.Trigger(ctx, roster.TeamRef{CoachID: s.coachID, TeamID: teamID})
	return err
}

// DeleteTeam deletes one of the coach's teams
func (s *CoachScreen) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := s.remove.Trigger(ctx, roster.TeamRef{CoachID: s.coachID, TeamID: teamID})
	return err
}

func (s *CoachScreen) setActionErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionErr = err
}

package roster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/mutation"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
)

// NewTeam asks for a team named Name owned by CoachID
type NewTeam struct {
	CoachID int
	Name    string
}

// RosterChange adds or removes one pokemon from a team
type RosterChange struct {
	TeamID    string
	PokemonID int
}

// TeamRef points at one of a coach's teams
type TeamRef struct {
	CoachID int
	TeamID  string
}

// CreateTeam returns the create-team mutation
func (s *Service) CreateTeam() *mutation.Mutation[NewTeam, *models.Team] {
	return mutation.New(mutation.Config[NewTeam, *models.Team]{
		Name:  "create-team",
		Cache: s.cache,
		Do: func(ctx context.Context, in NewTeam) (*models.Team, error) {
			input := &models.TeamInput{
				CoachID:    strconv.Itoa(in.CoachID),
				Name:       strings.TrimSpace(in.Name),
				PokemonIDs: []int{},
			}
			if err := s.validateTeamInput(input); err != nil {
				return nil, err
			}
			return s.remote.Teams.Create(ctx, input)
		},
		Invalidates: func(in NewTeam, _ *models.Team) []query.Key {
			return []query.Key{TeamCoachKey(in.CoachID)}
		},
		Notifier: s.opts.Notifier,
	})
}

// AddPokemon returns the add-pokemon mutation. A full roster is rejected
// before anything is written.
func (s *Service) AddPokemon() *mutation.Mutation[RosterChange, *models.Team] {
	return mutation.New(mutation.Config[RosterChange, *models.Team]{
		Name:  "add-pokemon",
		Cache: s.cache,
		Do: func(ctx context.Context, in RosterChange) (*models.Team, error) {
			team, err := s.team(ctx, in.TeamID)
			if err != nil {
				return nil, err
			}
			ids, err := AppendPokemon(team.PokemonIDs, in.PokemonID)
			if err != nil {
				return nil, err
			}
			return s.remote.Teams.Update(ctx, team.ID, &models.TeamInput{
				CoachID:    team.CoachID,
				Name:       team.Name,
				PokemonIDs: ids,
			})
		},
		Invalidates: func(in RosterChange, out *models.Team) []query.Key {
			return rosterKeys(in.TeamID, out)
		},
		Notifier: s.opts.Notifier,
	})
}

// RemovePokemon returns the remove-pokemon mutation. Removing a pokemon the
// roster does not hold writes nothing and yields a nil team.
func (s *Service) RemovePokemon() *mutation.Mutation[RosterChange, *models.Team] {
	return mutation.New(mutation.Config[RosterChange, *models.Team]{
		Name:  "remove-pokemon",
		Cache: s.cache,
		Do: func(ctx context.Context, in RosterChange) (*models.Team, error) {
			team, err := s.team(ctx, in.TeamID)
			if err != nil {
				return nil, err
			}
			ids, removed := RemoveFirstPokemon(team.PokemonIDs, in.PokemonID)
			if !removed {
				return nil, nil
			}
			return s.remote.Teams.Update(ctx, team.ID, &models.TeamInput{
				CoachID:    team.CoachID,
				Name:       team.Name,
				PokemonIDs: ids,
			})
		},
		Invalidates: func(in RosterChange, out *models.Team) []query.Key {
			if out == nil {
				return nil
			}
			return rosterKeys(in.TeamID, out)
		},
		Notifier: s.opts.Notifier,
	})
}

// SelectTeam returns the select-team mutation. Only teams linked to the
// coach can be selected.
func (s *Service) SelectTeam() *mutation.Mutation[TeamRef, *models.TeamCoach] {
	return mutation.New(mutation.Config[TeamRef, *models.TeamCoach]{
		Name:  "select-team",
		Cache: s.cache,
		Do: func(ctx context.Context, in TeamRef) (*models.TeamCoach, error) {
			link, err := s.teamCoach(ctx, in.CoachID)
			if err != nil {
				return nil, err
			}
			if !link.HasTeam(in.TeamID) {
				return nil, apperrors.ErrTeamNotLinked
			}
			update := *link
			update.TeamIDs = append([]string{}, link.TeamIDs...)
			update.SelectedTeamID = in.TeamID
			return s.remote.TeamCoach.Update(ctx, link.ID, &update)
		},
		Invalidates: func(in TeamRef, _ *models.TeamCoach) []query.Key {
			return []query.Key{TeamCoachKey(in.CoachID)}
		},
		Notifier: s.opts.Notifier,
	})
}

// DeleteTeam returns the delete-team mutation. The coach link keeps the
// deleted id; the coach teams query skips it.
func (s *Service) DeleteTeam() *mutation.Mutation[TeamRef, struct{}] {
	return mutation.New(mutation.Config[TeamRef, struct{}]{
		Name:  "delete-team",
		Cache: s.cache,
		Do: func(ctx context.Context, in TeamRef) (struct{}, error) {
			return struct{}{}, s.remote.Teams.Delete(ctx, in.TeamID)
		},
		Invalidates: func(in TeamRef, _ struct{}) []query.Key {
			return []query.Key{
				TeamCoachKey(in.CoachID),
				TeamsKey(in.CoachID),
				TeamKey(in.TeamID),
			}
		},
		Notifier: s.opts.Notifier,
	})
}

// rosterKeys lists what a roster write makes stale: the team record and the
// coach teams joined with it, which carry the roster too
func rosterKeys(teamID string, team *models.Team) []query.Key {
	keys := []query.Key{TeamKey(teamID)}
	if team != nil && team.CoachID != "" {
		keys = append(keys, query.NewKey(KeyTeams, team.CoachID))
	}
	return keys
}

func (s *Service) validateTeamInput(input *models.TeamInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &apperrors.ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	switch {
	case fe.Field() == "Name" && fe.Tag() == "required":
		return apperrors.ErrEmptyTeamName
	case fe.Field() == "Name" && fe.Tag() == "max":
		return &apperrors.ValidationError{Field: "name", Message: fmt.Sprintf("team name must be at most %s characters", fe.Param())}
	default:
		return &apperrors.ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed %s validation", fe.Tag())}
	}
}

package roster

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/mutation"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/remote"
)

// CoachTeamsQuery loads a coach-team link and the teams it references
type CoachTeamsQuery = query.Dependent[*models.TeamCoach, *models.Team, string]

// CoachTeamsResult is a snapshot of a CoachTeamsQuery
type CoachTeamsResult = query.Result[*models.TeamCoach, *models.Team]

// TeamPokemonQuery loads a team and the pokemon in its roster
type TeamPokemonQuery = query.Dependent[*models.Team, *models.Pokemon, int]

// TeamPokemonResult is a snapshot of a TeamPokemonQuery
type TeamPokemonResult = query.Result[*models.Team, *models.Pokemon]

// Options tunes a Service
type Options struct {
	// Concurrency limits parallel child fetches per query. Zero means unlimited.
	Concurrency int
	// Notifier announces invalidations to other instances
	Notifier mutation.Notifier
}

// Service builds the roster queries and mutations over one cache
type Service struct {
	cache    *query.Cache
	remote   remote.Services
	opts     Options
	validate *validator.Validate
}

// NewService creates a roster service
func NewService(cache *query.Cache, services remote.Services, opts Options) *Service {
	return &Service{
		cache:    cache,
		remote:   services,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Cache returns the query cache the service reads through
func (s *Service) Cache() *query.Cache {
	return s.cache
}

// CoachTeams returns a query for the teams of coachID. A coach without a
// link gets one created with no teams. Teams that no longer exist are
// skipped.
func (s *Service) CoachTeams(coachID int) *CoachTeamsQuery {
	q := query.NewDependent(s.cache, query.Config[*models.TeamCoach, *models.Team, string]{
		Name: "coach-teams",
		RootKey: func(rootID string) query.Key {
			return query.NewKey(KeyTeamCoach, rootID)
		},
		FetchRoot: func(ctx context.Context, rootID string) (*models.TeamCoach, error) {
			id, err := parseCoachID(rootID)
			if err != nil {
				return nil, err
			}
			return s.remote.TeamCoach.GetByCoach(ctx, id)
		},
		CreateRoot: func(ctx context.Context, rootID string) (*models.TeamCoach, error) {
			id, err := parseCoachID(rootID)
			if err != nil {
				return nil, err
			}
			return s.remote.TeamCoach.Create(ctx, &models.TeamCoach{CoachID: id, TeamIDs: []string{}})
		},
		ChildIDs: func(link *models.TeamCoach) []string {
			return link.TeamIDs
		},
		ChildKey: func(rootID string, ids []string) query.Key {
			return append(query.NewKey(KeyTeams, rootID), ids...)
		},
		FetchChild: func(ctx context.Context, id string) (*models.Team, error) {
			return s.remote.Teams.Get(ctx, id)
		},
		SkipMissing: true,
		Concurrency: s.opts.Concurrency,
	})
	q.SetRoot(strconv.Itoa(coachID))
	return q
}

// TeamPokemon returns a query for the roster of teamID. A pokemon that
// cannot be fetched fails the whole query.
func (s *Service) TeamPokemon(teamID string) *TeamPokemonQuery {
	q := query.NewDependent(s.cache, query.Config[*models.Team, *models.Pokemon, int]{
		Name:    "team-pokemon",
		RootKey: TeamKey,
		FetchRoot: func(ctx context.Context, rootID string) (*models.Team, error) {
			return s.remote.Teams.Get(ctx, rootID)
		},
		ChildIDs: func(team *models.Team) []int {
			return team.PokemonIDs
		},
		ChildKey: func(rootID string, ids []int) query.Key {
			return TeamPokemonKey(rootID, ids...)
		},
		FetchChild: func(ctx context.Context, id int) (*models.Pokemon, error) {
			return s.remote.Pokemon.Get(ctx, id)
		},
		Concurrency: s.opts.Concurrency,
	})
	q.SetRoot(teamID)
	return q
}

// AllPokemons returns the cached pokemon catalog
func (s *Service) AllPokemons(ctx context.Context) ([]models.Pokemon, error) {
	return query.Fetch(ctx, s.cache, CatalogKey(), s.remote.Pokemon.List)
}

func (s *Service) teamCoach(ctx context.Context, coachID int) (*models.TeamCoach, error) {
	return query.Fetch(ctx, s.cache, TeamCoachKey(coachID), func(ctx context.Context) (*models.TeamCoach, error) {
		return s.remote.TeamCoach.GetByCoach(ctx, coachID)
	})
}

func (s *Service) team(ctx context.Context, teamID string) (*models.Team, error) {
	return query.Fetch(ctx, s.cache, TeamKey(teamID), func(ctx context.Context) (*models.Team, error) {
		return s.remote.Teams.Get(ctx, teamID)
	})
}

func parseCoachID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &apperrors.ValidationError{Field: "coachId", Message: "coach id must be a positive number"}
	}
	return id, nil
}

package remote

import (
	"context"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
)

// TeamCoachService reaches the coach-team link service
type TeamCoachService interface {
	GetByCoach(ctx context.Context, coachID int) (*models.TeamCoach, error)
	Create(ctx context.Context, link *models.TeamCoach) (*models.TeamCoach, error)
	Update(ctx context.Context, id string, link *models.TeamCoach) (*models.TeamCoach, error)
}

// TeamService reaches the teams service
type TeamService interface {
	Get(ctx context.Context, id string) (*models.Team, error)
	Create(ctx context.Context, input *models.TeamInput) (*models.Team, error)
	Update(ctx context.Context, id string, input *models.TeamInput) (*models.Team, error)
	Delete(ctx context.Context, id string) error
}

// PokemonService reaches the read-only pokemon catalog
type PokemonService interface {
	List(ctx context.Context) ([]models.Pokemon, error)
	Get(ctx context.Context, id int) (*models.Pokemon, error)
}

// Services bundles the three external services
type Services struct {
	TeamCoach TeamCoachService
	Teams     TeamService
	Pokemon   PokemonService
}

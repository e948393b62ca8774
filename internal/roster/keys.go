package roster

import (
	"strconv"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
)

// Query key roots shared by every instance
const (
	KeyTeamCoach   = "teamCoach"
	KeyTeams       = "Teams"
	KeyTeamRoster  = "pok-team"
	KeyTeamPokemon = "Pokemons"
	KeyCatalog     = "pokemons"
)

// TeamCoachKey identifies the coach-team link of coachID
func TeamCoachKey(coachID int) query.Key {
	return query.NewKey(KeyTeamCoach, coachID)
}

// TeamsKey identifies the teams joined for coachID. The ids are part of the
// key so a change in the linked teams is a different entry.
func TeamsKey(coachID int, teamIDs ...string) query.Key {
	k := query.NewKey(KeyTeams, coachID)
	return append(k, teamIDs...)
}

// TeamKey identifies a single team record
func TeamKey(teamID string) query.Key {
	return query.NewKey(KeyTeamRoster, teamID)
}

// TeamPokemonKey identifies the pokemon joined for a team roster
func TeamPokemonKey(teamID string, pokemonIDs ...int) query.Key {
	k := query.NewKey(KeyTeamPokemon, teamID)
	for _, id := range pokemonIDs {
		k = append(k, strconv.Itoa(id))
	}
	return k
}

// CatalogKey identifies the full pokemon catalog
func CatalogKey() query.Key {
	return query.NewKey(KeyCatalog)
}

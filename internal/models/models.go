package models

import "slices"

// MaxRosterSize is the number of pokemon slots a team can hold
const MaxRosterSize = 6

// TeamCoach links a coach to the teams they own and the team they picked
type TeamCoach struct {
	ID             string   `json:"id"`
	CoachID        int      `json:"entrenadorId"`
	TeamIDs        []string `json:"equiposIds"`
	SelectedTeamID string   `json:"equipoSeleccionado"`
}

// HasTeam reports whether teamID is one of the linked teams
func (tc *TeamCoach) HasTeam(teamID string) bool {
	return slices.Contains(tc.TeamIDs, teamID)
}

// Team represents a coach's team as returned by the teams service
type Team struct {
	ID         string `json:"id"`
	Name       string `json:"nombre"`
	CoachID    string `json:"entrenadorId"`
	PokemonIDs []int  `json:"pokemonesIds"`
}

// TeamInput is the payload written to the teams service on create and update
type TeamInput struct {
	CoachID    string `json:"entrenadorId,omitempty"`
	Name       string `json:"nombre" validate:"required,max=100"`
	PokemonIDs []int  `json:"pokemonIds"`
}

// Pokemon is a read-only catalog entry
type Pokemon struct {
	ID    int      `json:"id"`
	Name  string   `json:"nombre"`
	Image string   `json:"imagen,omitempty"`
	Types []string `json:"tipos,omitempty"`
}

package views

import (
	"errors"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
)

// User-facing texts of the two screens
const (
	MsgTeamsLoadError   = "Error al cargar los equipos."
	MsgCoachLoadError   = "Error al cargar el equipo del entrenador."
	MsgPokemonLoadError = "Ocurrió un error al cargar los pokemons. Inténtalo de nuevo más tarde."
	MsgTeamLoadError    = "Ocurrio un error al cargar el equipo. Inténtalo de nuevo mas tarde."
	MsgNoTeams          = "No hay equipos disponibles."

	LabelCreateTeam   = "Crear nuevo equipo"
	LabelSelectedTeam = "Equipo seleccionado"
	LabelSelect       = "Seleccionar"
	LabelSearch       = "Buscar Pokémon..."

	MsgEmptyTeamName   = "El nombre del equipo es obligatorio."
	MsgTeamNameTooLong = "El nombre del equipo es demasiado largo."
	MsgRosterFull      = "El equipo ya tiene 6 pokemons."
	MsgTeamNotLinked   = "El equipo no pertenece a este entrenador."
	MsgInvalidInput    = "Los datos ingresados no son válidos."
	MsgNotFound        = "No se encontró el recurso solicitado."
	MsgActionFailed    = "Ocurrió un error al guardar los cambios. Inténtalo de nuevo más tarde."
)

// Message returns the text shown for a failed action
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperrors.ErrEmptyTeamName):
		return MsgEmptyTeamName
	case errors.Is(err, apperrors.ErrRosterFull):
		return MsgRosterFull
	case errors.Is(err, apperrors.ErrTeamNotLinked):
		return MsgTeamNotLinked
	case apperrors.IsValidation(err):
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) && ve.Field == "name" {
			return MsgTeamNameTooLong
		}
		return MsgInvalidInput
	case apperrors.IsNotFound(err):
		return MsgNotFound
	default:
		return MsgActionFailed
	}
}

package roster

import (
	"slices"
	"strings"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/models"
)

// Slot is one of the fixed roster positions of a team
type Slot struct {
	Index   int
	Pokemon *models.Pokemon
}

// Empty reports whether the slot holds no pokemon
func (s Slot) Empty() bool {
	return s.Pokemon == nil
}

// Slots lays pokemon out over MaxRosterSize positions, filled first
func Slots(pokemon []*models.Pokemon) []Slot {
	slots := make([]Slot, models.MaxRosterSize)
	for i := range slots {
		slots[i].Index = i
		if i < len(pokemon) {
			slots[i].Pokemon = pokemon[i]
		}
	}
	return slots
}

// AppendPokemon returns ids with id added at the end. Duplicates are allowed.
func AppendPokemon(ids []int, id int) ([]int, error) {
	if len(ids) >= models.MaxRosterSize {
		return nil, apperrors.ErrRosterFull
	}
	out := make([]int, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id), nil
}

// RemoveFirstPokemon returns ids without the first occurrence of id.
// removed is false when id is not in the roster.
func RemoveFirstPokemon(ids []int, id int) (out []int, removed bool) {
	i := slices.Index(ids, id)
	if i < 0 {
		return slices.Clone(ids), false
	}
	out = make([]int, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...), true
}

// FilterPokemons keeps the pokemon whose name contains text, ignoring case.
// An empty text keeps everything.
func FilterPokemons(list []models.Pokemon, text string) []models.Pokemon {
	if text == "" {
		return list
	}
	needle := strings.ToLower(text)

	out := make([]models.Pokemon, 0, len(list))
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

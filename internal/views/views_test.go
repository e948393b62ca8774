package views

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/remote"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
)

func TestMain(m *testing.M) {
	logger.InitWriter(os.Stderr, "error")
	goleak.VerifyTestMain(m)
}

func newTestRoster() (*roster.Service, *remote.Memory) {
	mem := remote.NewMemory()
	return roster.NewService(query.NewCache(), mem.Services(), roster.Options{}), mem
}

func TestCoachScreenNewCoach(t *testing.T) {
	svc, _ := newTestRoster()
	screen := NewCoachScreen(svc, 1)

	v := screen.Load(context.Background())
	if v.Loading {
		t.Error("view should not be loading after Load")
	}
	if !v.NoTeams {
		t.Error("new coach should show the no-teams message")
	}
	if len(v.Teams) != 0 || len(v.Errors) != 0 {
		t.Errorf("unexpected teams %v or errors %v", v.Teams, v.Errors)
	}
}

func TestCoachScreenCreateTeamResetsForm(t *testing.T) {
	svc, _ := newTestRoster()
	ctx := context.Background()
	screen := NewCoachScreen(svc, 2)
	screen.Load(ctx)

	screen.OpenModal()
	screen.SetTeamName("Relámpago")
	if v := screen.View(); !v.ModalOpen || v.TeamName != "Relámpago" {
		t.Fatalf("expected open modal with typed name, got %+v", v)
	}

	if err := screen.CreateTeam(ctx); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	v := screen.Load(ctx)
	if v.ModalOpen || v.TeamName != "" {
		t.Errorf("form should reset after create, got modal=%v name=%q", v.ModalOpen, v.TeamName)
	}
	if len(v.Teams) != 1 || v.Teams[0].Name != "Relámpago" {
		t.Errorf("expected the new team listed, got %+v", v.Teams)
	}
	if v.NoTeams {
		t.Error("no-teams message should be gone")
	}
}

func TestCoachScreenCreateTeamValidationKeepsForm(t *testing.T) {
	svc, _ := newTestRoster()
	screen := NewCoachScreen(svc, 2)

	screen.OpenModal()
	screen.SetTeamName("   ")
	if err := screen.CreateTeam(context.Background()); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	v := screen.View()
	if !v.ModalOpen {
		t.Error("modal should stay open after a rejected create")
	}
	if v.ActionError != MsgEmptyTeamName {
		t.Errorf("expected %q, got %q", MsgEmptyTeamName, v.ActionError)
	}
}

func TestCoachScreenSelectTeam(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	a := mem.SeedTeam(3, "Uno")
	b := mem.SeedTeam(3, "Dos")

	screen := NewCoachScreen(svc, 3)
	screen.Load(ctx)

	if err := screen.SelectTeam(ctx, b.ID); err != nil {
		t.Fatalf("SelectTeam: %v", err)
	}
	v := screen.Load(ctx)

	want := []TeamItem{
		{ID: a.ID, Name: "Uno", Selected: false},
		{ID: b.ID, Name: "Dos", Selected: true},
	}
	if diff := cmp.Diff(want, v.Teams); diff != "" {
		t.Errorf("teams mismatch (-want +got):\n%s", diff)
	}
	if v.SelectedTeamID != b.ID {
		t.Errorf("expected selected %s, got %s", b.ID, v.SelectedTeamID)
	}

	if err := screen.SelectTeam(ctx, "ajeno"); err == nil {
		t.Error("selecting an unlinked team should fail")
	}
	if got := screen.View().ActionError; got != MsgTeamNotLinked {
		t.Errorf("expected %q, got %q", MsgTeamNotLinked, got)
	}
}

func TestCoachScreenLoadErrors(t *testing.T) {
	t.Run("link", func(t *testing.T) {
		svc, mem := newTestRoster()
		mem.Fail(remote.OpGetTeamCoach, &apperrors.TransportError{Op: remote.OpGetTeamCoach, StatusCode: 503})

		v := NewCoachScreen(svc, 4).Load(context.Background())
		if diff := cmp.Diff([]string{MsgCoachLoadError}, v.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
		if got := mem.Calls(remote.OpCreateTeamCoach); got != 0 {
			t.Errorf("transport failure must not create a link, got %d creates", got)
		}
	})

	t.Run("teams", func(t *testing.T) {
		svc, mem := newTestRoster()
		mem.SeedTeam(4, "Caído")
		mem.Fail(remote.OpGetTeam, &apperrors.TransportError{Op: remote.OpGetTeam, StatusCode: 500})

		v := NewCoachScreen(svc, 4).Load(context.Background())
		if diff := cmp.Diff([]string{MsgTeamsLoadError}, v.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCoachScreenWatchSeesOtherSessionDelete(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	team := mem.SeedTeam(5, "Efímero")

	watched := NewCoachScreen(svc, 5)
	if v := watched.Load(ctx); len(v.Teams) != 1 {
		t.Fatalf("expected 1 team, got %d", len(v.Teams))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	changes := make(chan CoachView, 8)
	done := watched.Watch(watchCtx, func(v CoachView) { changes <- v })
	defer func() {
		cancel()
		<-done
	}()

	other := NewCoachScreen(svc, 5)
	if err := other.DeleteTeam(ctx, team.ID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case v := <-changes:
			if len(v.Teams) == 0 {
				return
			}
		case <-deadline:
			t.Fatal("watched screen never dropped the deleted team")
		}
	}
}

func TestTeamScreenSlots(t *testing.T) {
	svc, mem := newTestRoster()
	team := mem.SeedTeam(1, "Kanto", 1, 4, 7)

	v := NewTeamScreen(svc, team.ID).Load(context.Background())
	if v.Loading || v.Error != "" {
		t.Fatalf("unexpected state loading=%v error=%q", v.Loading, v.Error)
	}
	if v.Name != "Kanto" {
		t.Errorf("expected name Kanto, got %q", v.Name)
	}
	if len(v.Slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(v.Slots))
	}

	var filled []int
	for _, s := range v.Slots {
		if !s.Empty {
			filled = append(filled, s.Pokemon.ID)
		}
	}
	if diff := cmp.Diff([]int{1, 4, 7}, filled); diff != "" {
		t.Errorf("filled slots mismatch (-want +got):\n%s", diff)
	}
	if v.Full {
		t.Error("three pokemon is not a full roster")
	}
}

func TestTeamScreenAddPokemonClearsSelection(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	team := mem.SeedTeam(1, "Kanto", 1)

	screen := NewTeamScreen(svc, team.ID)
	screen.Load(ctx)
	screen.OpenModal()

	if err := screen.AddPokemon(ctx, 25); err != nil {
		t.Fatalf("AddPokemon: %v", err)
	}

	v := screen.Load(ctx)
	if v.PickerOpen {
		t.Error("picker should close when a pokemon is picked")
	}
	if v.SelectedID != 0 {
		t.Errorf("selection should clear after a successful add, got %d", v.SelectedID)
	}
	if v.Slots[1].Empty || v.Slots[1].Pokemon.ID != 25 {
		t.Errorf("expected pikachu in slot 1, got %+v", v.Slots[1])
	}
}

func TestCoachScreenCountsFollowRosterChanges(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	team := mem.SeedTeam(6, "Johto", 1)

	coach := NewCoachScreen(svc, 6)
	if v := coach.Load(ctx); len(v.Teams) != 1 || v.Teams[0].Pokemon != 1 {
		t.Fatalf("expected one team with 1 pokemon, got %+v", v.Teams)
	}

	teamScreen := NewTeamScreen(svc, team.ID)
	teamScreen.Load(ctx)
	if err := teamScreen.AddPokemon(ctx, 4); err != nil {
		t.Fatalf("AddPokemon: %v", err)
	}

	if v := coach.Load(ctx); v.Teams[0].Pokemon != 2 {
		t.Errorf("open coach screen: expected pokemonCount 2, got %d", v.Teams[0].Pokemon)
	}
	if v := NewCoachScreen(svc, 6).Load(ctx); v.Teams[0].Pokemon != 2 {
		t.Errorf("new coach screen: expected pokemonCount 2, got %d", v.Teams[0].Pokemon)
	}
}

func TestTeamScreenAddToFullRoster(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	team := mem.SeedTeam(1, "Lleno", 1, 2, 3, 4, 5, 6)

	screen := NewTeamScreen(svc, team.ID)
	if v := screen.Load(ctx); !v.Full {
		t.Fatal("six pokemon should be a full roster")
	}

	if err := screen.AddPokemon(ctx, 25); err == nil {
		t.Fatal("adding to a full roster should fail")
	}
	v := screen.View()
	if v.ActionError != MsgRosterFull {
		t.Errorf("expected %q, got %q", MsgRosterFull, v.ActionError)
	}
	if v.SelectedID != 25 {
		t.Errorf("failed add should keep the selection, got %d", v.SelectedID)
	}
}

func TestTeamScreenRemovePokemon(t *testing.T) {
	svc, mem := newTestRoster()
	ctx := context.Background()
	team := mem.SeedTeam(1, "Dobles", 25, 4, 25)

	screen := NewTeamScreen(svc, team.ID)
	screen.Load(ctx)

	if err := screen.RemovePokemon(ctx, 25); err != nil {
		t.Fatalf("RemovePokemon: %v", err)
	}
	v := screen.Load(ctx)

	var filled []int
	for _, s := range v.Slots {
		if !s.Empty {
			filled = append(filled, s.Pokemon.ID)
		}
	}
	if diff := cmp.Diff([]int{4, 25}, filled); diff != "" {
		t.Errorf("filled slots mismatch (-want +got):\n%s", diff)
	}
}

func TestTeamScreenSearchFilter(t *testing.T) {
	svc, mem := newTestRoster()
	team := mem.SeedTeam(1, "Kanto")

	screen := NewTeamScreen(svc, team.ID)
	screen.Load(context.Background())
	screen.SetSearchFilter("CHAR")

	var names []string
	for _, p := range screen.View().Catalog {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Charmander", "Charmeleon", "Charizard"}, names); diff != "" {
		t.Errorf("filtered catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestTeamScreenLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mem *remote.Memory) string
		want  string
	}{
		{
			name: "missing team",
			setup: func(mem *remote.Memory) string {
				return "no-existe"
			},
			want: MsgTeamLoadError,
		},
		{
			name: "catalog failure",
			setup: func(mem *remote.Memory) string {
				mem.Fail(remote.OpListPokemon, &apperrors.TransportError{Op: remote.OpListPokemon, StatusCode: 500})
				return mem.SeedTeam(1, "Kanto").ID
			},
			want: MsgPokemonLoadError,
		},
		{
			name: "missing roster pokemon",
			setup: func(mem *remote.Memory) string {
				return mem.SeedTeam(1, "Raro", 9999).ID
			},
			want: MsgPokemonLoadError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem := newTestRoster()
			teamID := tt.setup(mem)

			v := NewTeamScreen(svc, teamID).Load(context.Background())
			if v.Error != tt.want {
				t.Errorf("expected %q, got %q", tt.want, v.Error)
			}
		})
	}
}

func TestSessions(t *testing.T) {
	svc, _ := newTestRoster()
	sessions := NewSessions(svc, time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	a, created := sessions.Get("")
	if !created || a.ID == "" {
		t.Fatalf("expected a new session, got created=%v id=%q", created, a.ID)
	}

	again, created := sessions.Get(a.ID)
	if created || again != a {
		t.Error("known id should return the same session")
	}
	if a.Coach(1) != a.Coach(1) {
		t.Error("coach screen should be reused within a session")
	}
	if a.Team("t1") != a.Team("t1") {
		t.Error("team screen should be reused within a session")
	}

	b, _ := sessions.Get("unknown")
	if b.ID == "unknown" || b == a {
		t.Error("unknown id should get a fresh session")
	}
	if a.Coach(1) == b.Coach(1) {
		t.Error("sessions must not share screens")
	}

	now = now.Add(45 * time.Second)
	sessions.Get(a.ID)

	now = now.Add(30 * time.Second)
	if removed := sessions.Sweep(); removed != 1 {
		t.Errorf("expected 1 idle session removed, got %d", removed)
	}
	if sessions.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", sessions.Len())
	}
	if _, created := sessions.Get(a.ID); created {
		t.Error("recently used session should survive the sweep")
	}
}

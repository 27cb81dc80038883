package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/checkers-server/internal/domain"
)

func TestEmbeddedReasonsCoverDomainCodes(t *testing.T) {
	c := MustDefault()
	codes := []string{
		"out_of_bounds", "destination_occupied", "not_owner", "not_diagonal", "wrong_direction",
		"invalid_distance", "no_piece_to_capture", "blocked_by_own_piece", "too_many_pieces_on_path",
		domain.ReasonNotYourTurn, domain.ReasonGameAlreadyFinished, domain.ReasonNotParticipant,
		domain.ReasonAlreadyQueued, domain.ReasonNotQueued, domain.ReasonInvalidArgs,
		domain.ReasonGameNotFound, domain.ReasonTryAgain, domain.ReasonInternal,
	}
	for _, code := range codes {
		if msg := c.Reason(code, nil); msg == code || msg == "" {
			t.Fatalf("no message for %q", code)
		}
	}
	if got := c.Reason("made_up", nil); got != "made_up" {
		t.Fatalf("unknown code should fall back to itself, got %q", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	c := MustDefault()
	got, err := c.Render("queue.matched", map[string]any{"GameID": "g-1"})
	if err != nil || !strings.Contains(got, "g-1") {
		t.Fatalf("Render: %q %v", got, err)
	}
	if _, err := c.Render("queue.matched", map[string]any{}); err == nil {
		t.Fatalf("missing field should fail")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  not_owner: \"custom\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Reason("not_owner", nil); got != "custom" {
		t.Fatalf("override not applied: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("errors:\n  not_owner: \"again\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("duplicate keys across override files should fail")
	}
}

package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRule(name string) *AutoReplyRule {
	return &AutoReplyRule{
		Name:      name,
		Keywords:  []string{"hello"},
		Reply:     "Welcome!",
		Enabled:   true,
		MatchType: MatchContains,
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, path
}

func TestStoreCreateAssignsIDAndPersists(t *testing.T) {
	s, path := newTestStore(t)

	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Fatal("no id assigned")
	}
	if r.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	// Reload from disk and confirm the rule survived.
	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get(r.ID)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.Name != "greeting" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)

	bad := &AutoReplyRule{Name: "no keywords", Reply: "x"}
	if err := s.Create(bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestStoreCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path); err == nil {
		t.Error("expected error for corrupt rules file")
	}
}

func TestStoreUpdatePreservesTriggerStats(t *testing.T) {
	s, _ := newTestStore(t)
	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.IncrementTrigger(r.ID); err != nil {
			t.Fatal(err)
		}
	}

	upd := testRule("renamed")
	upd.Reply = "New reply"
	got, err := s.Update(r.ID, upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed" || got.Reply != "New reply" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.TriggerCount != 2 {
		t.Errorf("trigger count = %d, want 2 preserved", got.TriggerCount)
	}
	if got.LastTriggered == nil {
		t.Error("last triggered lost on update")
	}
}

func TestStoreToggle(t *testing.T) {
	s, _ := newTestStore(t)
	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Toggle(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("expected disabled after first toggle")
	}
	got, _ = s.Toggle(r.ID)
	if !got.Enabled {
		t.Error("expected enabled after second toggle")
	}
}

func TestStoreResetTrigger(t *testing.T) {
	s, _ := newTestStore(t)
	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementTrigger(r.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.ResetTrigger(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TriggerCount != 0 || got.LastTriggered != nil {
		t.Errorf("reset left count=%d lastTriggered=%v", got.TriggerCount, got.LastTriggered)
	}
}

func TestStoreDeleteAndNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(r.ID); err != ErrNotFound {
		t.Errorf("get deleted = %v, want ErrNotFound", err)
	}
	if err := s.Delete(r.ID); err != ErrNotFound {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestStoreListEnabled(t *testing.T) {
	s, _ := newTestStore(t)
	on := testRule("on")
	off := testRule("off")
	off.Enabled = false
	if err := s.Create(on); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(off); err != nil {
		t.Fatal(err)
	}

	enabled := s.ListEnabled()
	if len(enabled) != 1 || enabled[0].Name != "on" {
		t.Errorf("enabled = %v", enabled)
	}
	total, n := s.Count()
	if total != 2 || n != 1 {
		t.Errorf("count = %d/%d, want 2/1", total, n)
	}
}

func TestStoreListReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	r := testRule("greeting")
	if err := s.Create(r); err != nil {
		t.Fatal(err)
	}

	s.List()[0].Name = "mutated"
	got, _ := s.Get(r.ID)
	if got.Name != "greeting" {
		t.Error("List exposed internal state")
	}
}

func TestRuleJSONShape(t *testing.T) {
	r := testRule("greeting")
	r.ID = "rule_1"
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"id"`, `"match_type"`, `"case_sensitive"`, `"trigger_count"`, `"last_triggered"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled rule missing %s: %s", key, data)
		}
	}
}

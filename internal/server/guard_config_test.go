package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

func TestLoadGuard_NoPathMeansPermissiveGuard(t *testing.T) {
	t.Setenv("GUARD_RULES_PATH", "")
	g, err := loadGuard()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d := g.Check(types.LayerBase, "global", types.KindFormula, `{}`); !d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestLoadGuard_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yaml")
	if err := os.WriteFile(path, []byte(`
version: 1
rules:
  - rule_id: no-base-writes
    expr: record.layer != "base"
    reason_code: BASE_LAYER_LOCKED
`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GUARD_RULES_PATH", path)

	g, err := loadGuard()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d := g.Check(types.LayerBase, "global", types.KindStopword, `{}`); d.Allowed {
		t.Fatal("expected denial")
	}
	if d := g.Check(types.LayerMarket, "de", types.KindStopword, `{}`); !d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestLoadGuard_RejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yaml")

	for _, body := range []string{
		"version: 9\n",
		"version: 1\nrules:\n  - rule_id: broken\n    expr: 'record.layer =='\n",
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("GUARD_RULES_PATH", path)
		if _, err := loadGuard(); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

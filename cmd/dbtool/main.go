package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <overrides-smoke> [args]")
	}

	switch os.Args[1] {
	case "overrides-smoke":
		overridesSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

// overridesSmoke exercises the override write path against a throwaway
// copy of the ruleset tables: insert, version bump on conflict, disable,
// and the active-only read filter.
func overridesSmoke(args []string) {
	fs := flag.NewFlagSet("overrides-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		fatalf("missing --url (or DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
CREATE TEMP TABLE overrides_smoke (
  record_uuid uuid PRIMARY KEY,
  scope_layer text NOT NULL,
  scope_key text NOT NULL,
  kind text NOT NULL,
  payload jsonb NOT NULL,
  layer_version bigint NOT NULL DEFAULT 0,
  status text NOT NULL DEFAULT 'active',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
);`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `
CREATE TEMP TABLE layer_versions_smoke (
  scope_layer text NOT NULL,
  scope_key text NOT NULL,
  version bigint NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (scope_layer, scope_key)
);`); err != nil {
		fatal(err)
	}

	recordUUID := "00000000-0000-7000-8000-000000000001"
	if _, err := tx.Exec(ctx, `
INSERT INTO overrides_smoke (record_uuid, scope_layer, scope_key, kind, payload)
VALUES ($1::uuid, 'vertical', 'education', 'stopword', '{"words":["the"]}'::jsonb);`, recordUUID); err != nil {
		fatal(err)
	}

	bump := `
INSERT INTO layer_versions_smoke (scope_layer, scope_key, version)
VALUES ('vertical', 'education', 1)
ON CONFLICT (scope_layer, scope_key)
DO UPDATE SET version = layer_versions_smoke.version + 1, updated_at = now()
RETURNING version;`

	var version int64
	if err := tx.QueryRow(ctx, bump).Scan(&version); err != nil {
		fatal(err)
	}
	if version != 1 {
		fatalf("expected first version bump to return 1, got %d", version)
	}
	if err := tx.QueryRow(ctx, bump).Scan(&version); err != nil {
		fatal(err)
	}
	if version != 2 {
		fatalf("expected second version bump to return 2, got %d", version)
	}

	if _, err := tx.Exec(ctx, `
UPDATE overrides_smoke SET status = 'disabled', updated_at = now()
WHERE record_uuid = $1::uuid AND status = 'active';`, recordUUID); err != nil {
		fatal(err)
	}

	var active int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM overrides_smoke WHERE scope_layer = 'vertical' AND scope_key = 'education' AND status = 'active';`).Scan(&active); err != nil {
		fatal(err)
	}
	if active != 0 {
		fatalf("expected disabled record to leave the active set, got %d active rows", active)
	}

	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("overrides-smoke: ok")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

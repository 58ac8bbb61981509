package bankstmt_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/output"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/reconcile"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/scanner"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/snapshot"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/statement"
)

// Two overlapping exports of the same feed. The second repeats the synthetic
// outbound movement, updates the description of "abc" and adds "def".
const januarySnapshot = `{
  "movements": [
    {
      "type": "outbound",
      "amount": 5000,
      "accountable_date": "2023-02-01T10:00:00.000000Z",
      "date": "2023-02-01T10:00:00.000000Z",
      "description": "Pago proveedor",
      "movement_meta": {
        "recipient_rut": "11.111.111-1",
        "recipient_account": "000123",
        "recipient_bank": "Banco Estado"
      }
    },
    {
      "id": "abc",
      "type": "inbound",
      "amount": 3000,
      "accountable_date": "2023-01-15T09:00:00.000000Z",
      "date": "2023-01-15T09:00:00.000000Z",
      "description": "Abono cliente",
      "movement_meta": {}
    }
  ]
}`

const februarySnapshot = `{
  "movements": [
    {
      "type": "outbound",
      "amount": 5000,
      "accountable_date": "2023-02-01T10:00:00.000000Z",
      "date": "2023-02-01T10:00:00.000000Z",
      "description": "Pago proveedor",
      "movement_meta": {
        "recipient_rut": "11.111.111-1",
        "recipient_account": "000123",
        "recipient_bank": "Banco Estado"
      }
    },
    {
      "id": "abc",
      "type": "inbound",
      "amount": 3000,
      "accountable_date": "2023-01-15T09:00:00.000000Z",
      "date": "2023-01-15T09:00:00.000000Z",
      "description": "Abono cliente (conciliado)",
      "movement_meta": {}
    },
    {
      "id": "def",
      "type": "inbound",
      "amount": 3000,
      "accountable_date": "2023-01-15T09:00:00.000000Z",
      "date": "2023-01-15T09:00:00.000000Z",
      "description": "Abono duplicado legitimo",
      "movement_meta": {}
    }
  ]
}`

func setupSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"snapshot_ACME_2023-01.json": januarySnapshot,
		"snapshot_ACME_2023-02.json": februarySnapshot,
		"snapshot_BETA_2023-01.json": januarySnapshot,
		"snapshot.json":              januarySnapshot,
		"readme.md":                  "not a snapshot",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

// TestEndToEnd_ScanMergeRender runs scanning, merging and rendering the way
// the CLI chains them.
func TestEndToEnd_ScanMergeRender(t *testing.T) {
	in := setupSnapshots(t)
	out := t.TempDir()

	results, skipped, err := scanner.New(in).Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(results))
	}
	if len(skipped) != 1 || filepath.Base(skipped[0]) != "snapshot.json" {
		t.Errorf("expected snapshot.json to be skipped, got %v", skipped)
	}

	groups := scanner.GroupByCompany(results)
	if len(groups) != 2 || groups[0].Company != "ACME" || groups[1].Company != "BETA" {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	runner := reconcile.NewRunner(reconcile.Options{OutputDir: out, Workers: 2, JSONExport: true})
	companyResults, err := runner.Run(context.Background(), groups)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	acme := companyResults[0]
	if acme.Err != nil {
		t.Fatalf("ACME failed: %v", acme.Err)
	}
	want := []string{
		"Numero de movimientos: 3",
		"15-01-2023 | 3000 | Abono cliente (conciliado)",
		"15-01-2023 | 3000 | Abono duplicado legitimo",
		"01-02-2023 | -5000 | Pago proveedor",
	}
	if strings.Join(acme.Lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("ACME lines mismatch\ngot:\n%s\nwant:\n%s", strings.Join(acme.Lines, "\n"), strings.Join(want, "\n"))
	}

	data, err := os.ReadFile(filepath.Join(out, "empresa_acme.txt"))
	if err != nil {
		t.Fatalf("failed to read ACME report: %v", err)
	}
	if string(data) != strings.Join(want, "\n")+"\n" {
		t.Errorf("ACME report mismatch:\n%s", data)
	}

	beta := companyResults[1]
	if beta.Err != nil || beta.Count != 2 {
		t.Errorf("BETA: err=%v count=%d, want nil and 2", beta.Err, beta.Count)
	}

	ledger, err := output.LoadLedger(filepath.Join(out, "empresa_acme.json"))
	if err != nil {
		t.Fatalf("failed to load ledger: %v", err)
	}
	if ledger.RunID != runner.RunID() || ledger.Count != 3 {
		t.Errorf("unexpected ledger header: runId=%q count=%d", ledger.RunID, ledger.Count)
	}
	keys := make(map[string]bool)
	for _, e := range ledger.Movements {
		keys[e.Key] = true
	}
	if !keys["abc"] || !keys["def"] {
		t.Errorf("ledger should keep upstream ids as keys, got %v", keys)
	}
}

// TestEndToEnd_ReingestIsIdempotent loads the same files twice into one
// statement and checks that the rendered ledger does not change.
func TestEndToEnd_ReingestIsIdempotent(t *testing.T) {
	in := setupSnapshots(t)
	paths := []string{
		filepath.Join(in, "snapshot_ACME_2023-01.json"),
		filepath.Join(in, "snapshot_ACME_2023-02.json"),
	}

	st := statement.New("ACME")
	ingest := func() {
		for _, p := range paths {
			snap, err := snapshot.Load(p)
			if err != nil {
				t.Fatalf("load %s: %v", p, err)
			}
			if _, err := st.Update(snap); err != nil {
				t.Fatalf("update %s: %v", p, err)
			}
		}
	}

	ingest()
	first, err := output.Render(st)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	ingest()
	second, err := output.Render(st)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Errorf("re-ingesting changed the ledger\nfirst:\n%s\nsecond:\n%s", strings.Join(first, "\n"), strings.Join(second, "\n"))
	}
	if st.Len() != 3 {
		t.Errorf("expected 3 movements after re-ingest, got %d", st.Len())
	}
}

// TestEndToEnd_RenderIsDeterministic renders independent statements built
// from the same input and expects identical output.
func TestEndToEnd_RenderIsDeterministic(t *testing.T) {
	in := setupSnapshots(t)
	path := filepath.Join(in, "snapshot_ACME_2023-02.json")

	var previous string
	for i := 0; i < 5; i++ {
		snap, err := snapshot.Load(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		st := statement.New("ACME")
		if _, err := st.Update(snap); err != nil {
			t.Fatalf("update: %v", err)
		}
		lines, err := output.Render(st)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		got := strings.Join(lines, "\n")
		if i > 0 && got != previous {
			t.Fatalf("render %d differs\ngot:\n%s\nprevious:\n%s", i, got, previous)
		}
		previous = got
	}
}

package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"mdtoml/internal/agent"
	"mdtoml/internal/db"
	"mdtoml/internal/llm"
)

type docArgs struct {
	Doc string `json:"doc"`
}

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "nested", "audit.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewStore(database)
}

func TestStore_RecordsDispatchMetadata(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	reg, err := agent.NewRegistry(agent.NewFuncTool(llm.ToolDescriptor{
		Name: "upper",
		InputSchema: llm.InputSchema{
			Type:       "object",
			Properties: map[string]any{"doc": map[string]any{"type": "string"}},
			Required:   []string{"doc"},
		},
	}, func(_ context.Context, a docArgs) (string, error) {
		return strings.ToUpper(a.Doc), nil
	}))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	d := agent.NewDispatcher(reg, "audit-session", agent.WithRecorder(store))

	ctx := context.Background()
	d.Execute(ctx, "upper", map[string]any{"doc": "secret document body"})
	d.Execute(ctx, "upper", map[string]any{})
	d.Execute(ctx, "lower", map[string]any{"doc": "x"})

	rows, err := store.Session(ctx, "audit-session")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	want := []struct {
		kind    agent.Kind
		success bool
	}{
		{agent.KindOK, true},
		{agent.KindInvalidParams, false},
		{agent.KindUnknownTool, false},
	}
	for i, w := range want {
		if rows[i].Kind != string(w.kind) || rows[i].Success != w.success {
			t.Errorf("row %d = %+v, want kind %s success %v", i, rows[i], w.kind, w.success)
		}
	}
	if rows[0].ResultBytes != int64(len("SECRET DOCUMENT BODY")) || rows[0].ErrorMessage != "" {
		t.Errorf("unexpected success row %+v", rows[0])
	}
	if rows[1].ErrorMessage == "" || rows[1].ResultBytes != 0 {
		t.Errorf("unexpected failure row %+v", rows[1])
	}
	for _, r := range rows {
		if strings.Contains(r.ErrorMessage, "secret document body") {
			t.Errorf("argument values must not be stored: %+v", r)
		}
	}
}

func TestStore_Recent(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	for _, session := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, agent.Result{Success: true, SessionID: session, ToolName: "t", Kind: agent.KindOK, ToolResult: ""}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	rows, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 || rows[0].SessionID != "c" || rows[1].SessionID != "b" {
		t.Fatalf("unexpected recent rows %+v", rows)
	}
	if rows[0].CreatedAt == "" {
		t.Error("created_at should default to now")
	}
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := NewStore(database).Record(context.Background(), agent.Result{SessionID: "s", ToolName: "t", Kind: agent.KindUnknownTool, ErrorMessage: "nope"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

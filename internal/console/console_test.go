package console

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/me/mdconsole/internal/config"
	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/internal/server"
	"github.com/me/mdconsole/internal/store"
	"github.com/me/mdconsole/pkg/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type testEnv struct {
	url string
	st  *store.SQLiteStore
	dir string
}

// startTestServer starts a seeded server on an in-memory SQLite store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	seed, err := server.LoadSeed(filepath.Join("..", "..", "testdata", "seed.yaml"))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if _, err := server.Seed(context.Background(), st, seed, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv := server.New(config.DefaultServerConfig(), st, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{url: ts.URL, st: st, dir: t.TempDir()}
}

// run executes the CLI against the test server with stdin as input.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	base := []string{
		"--server", e.url,
		"--profile", filepath.Join(e.dir, "config.yaml"),
		"--handoff-db", filepath.Join(e.dir, "handoffs.db"),
	}
	root.SetArgs(append(base, args...))

	err := root.Execute()
	return buf.String(), err
}

func TestPingCommand(t *testing.T) {
	env := startTestServer(t)
	out, err := env.run(t, "", "ping")
	if err != nil {
		t.Fatalf("ping: %v\n%s", err, out)
	}
	if !strings.Contains(out, "is healthy") {
		t.Errorf("output = %s", out)
	}
}

func TestListCommand(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "plants", "list", "--size", "2")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, out)
	}
	for _, want := range []string{"CODE", "PL-N", "PL-S", "Page 1 of 2 (3 records)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "PL-E") {
		t.Errorf("PL-E belongs on page 2:\n%s", out)
	}

	out, err = env.run(t, "", "plants", "list", "--page", "2", "--size", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PL-E") || !strings.Contains(out, "Page 2 of 2") {
		t.Errorf("page 2 output:\n%s", out)
	}

	out, err = env.run(t, "", "plants", "list", "--search", "south")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PL-S") || strings.Contains(out, "PL-N") {
		t.Errorf("search output:\n%s", out)
	}

	out, err = env.run(t, "", "plant-assignments", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "101,102,103") || !strings.Contains(out, "North Works") {
		t.Errorf("assignments output:\n%s", out)
	}
}

func TestListCommand_EmptyAndInvalid(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "designations", "list", "--search", "zzz")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `No designations match "zzz".`) {
		t.Errorf("output = %s", out)
	}

	if _, err := env.run(t, "", "designations", "list", "--page", "0"); !model.IsValidation(err) {
		t.Errorf("page 0: err = %v, want validation error", err)
	}
	if _, err := env.run(t, "", "designations", "list", "--size", "101"); !model.IsValidation(err) {
		t.Errorf("size 101: err = %v, want validation error", err)
	}
}

func TestListCommand_ServerDown(t *testing.T) {
	env := startTestServer(t)
	env.url = "http://127.0.0.1:1"

	out, err := env.run(t, "", "plants", "list")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "[ERROR] "+listflow.GenericFailureText) {
		t.Errorf("output = %s", out)
	}
}

func TestGetCommand(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "designations", "get", "3")
	if err != nil {
		t.Fatalf("get: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Quality Analyst") {
		t.Errorf("output = %s", out)
	}

	out, err = env.run(t, "", "designations", "get", "99")
	var be *model.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want business error", err)
	}
	if !strings.Contains(out, "[ERROR] Designation 99 not found.") {
		t.Errorf("output = %s", out)
	}
}

func TestCreateCommand(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "",
		"--actor", "qa.lead",
		"designations", "create",
		"--set", "designationCode=QC",
		"--set", "designationName=Quality Control",
	)
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[SUCCESS] Designation created successfully.") {
		t.Errorf("output = %s", out)
	}

	items, total, err := env.st.Designations().List(context.Background(), model.ListOptions{PageNumber: 1, PageSize: 10, Search: "QC"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].Name != "Quality Control" || items[0].CreatedBy != "qa.lead" {
		t.Errorf("stored = %+v (total %d)", items, total)
	}
}

func TestCreateCommand_ValidationAndIdentity(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "--actor", "qa.lead", "designations", "create", "--set", "designationCode=QC")
	if !model.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if !strings.Contains(out, "designationName") {
		t.Errorf("expected inline field error, got %s", out)
	}

	if _, err := env.run(t, "", "designations", "create", "--set", "designationCode=QC", "--set", "designationName=QC"); err == nil {
		t.Error("create without an actor should fail")
	}

	if _, err := env.run(t, "", "--actor", "qa.lead", "designations", "create", "--set", "colour=red"); err == nil {
		t.Error("unknown field should fail")
	}

	_, total, _ := env.st.Designations().List(context.Background(), model.ListOptions{PageNumber: 1, PageSize: 10})
	if total != 4 {
		t.Errorf("total = %d, nothing should have been created", total)
	}
}

func TestCreateCommand_DuplicateCode(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "--actor", "qa.lead", "plants", "create", "--set", "plantCode=pl-n", "--set", "plantName=Copy")
	var be *model.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want business error\n%s", err, out)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Errorf("output = %s", out)
	}
}

func TestUpdateCommand(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "",
		"--actor", "qa.lead", "--signature", "QL-2026",
		"plants", "update", "1",
		"--set", "location=Mumbai",
		"--reason", "Site moved",
	)
	if err != nil {
		t.Fatalf("update: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[SUCCESS] Plant updated successfully.") {
		t.Errorf("output = %s", out)
	}
	p, err := env.st.Plants().Get(context.Background(), 1)
	if err != nil || p == nil {
		t.Fatalf("get: %v", err)
	}
	if p.Location != "Mumbai" || p.ModifiedBy != "qa.lead" {
		t.Errorf("stored = %+v", p)
	}
}

func TestUpdateCommand_NoChanges(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "--actor", "qa.lead", "plants", "update", "1", "--set", "location=Pune", "--reason", "none")
	if err != nil {
		t.Fatalf("update: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[INFORMATION] "+listflow.NoChangesText) {
		t.Errorf("output = %s", out)
	}
}

func TestUpdateCommand_ReasonPrompt(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "\n", "--actor", "qa.lead", "plants", "update", "2", "--set", "plantName=South Campus")
	if !errors.Is(err, listflow.ErrReasonRequired) {
		t.Fatalf("err = %v, want ErrReasonRequired\n%s", err, out)
	}
	if !strings.Contains(out, "Reason for change: ") || !strings.Contains(out, "[ERROR] "+listflow.ReasonRequiredText) {
		t.Errorf("output = %s", out)
	}

	out, err = env.run(t, "Renamed by plant head\n", "--actor", "qa.lead", "plants", "update", "2", "--set", "plantName=South Campus")
	if err != nil {
		t.Fatalf("update: %v\n%s", err, out)
	}
	p, _ := env.st.Plants().Get(context.Background(), 2)
	if p == nil || p.Name != "South Campus" {
		t.Errorf("stored = %+v", p)
	}
}

func TestDeleteCommand(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "n\n", "--actor", "qa.lead", "designations", "delete", "4")
	if err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("output = %s", out)
	}
	if d, _ := env.st.Designations().Get(context.Background(), 4); d == nil {
		t.Fatal("declined delete removed the record")
	}

	out, err = env.run(t, "y\n", "--actor", "qa.lead", "designations", "delete", "4")
	if err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[SUCCESS] Designation deleted successfully.") {
		t.Errorf("output = %s", out)
	}
	if d, _ := env.st.Designations().Get(context.Background(), 4); d != nil {
		t.Error("record still present")
	}
}

func TestDeleteCommand_InUse(t *testing.T) {
	env := startTestServer(t)

	out, err := env.run(t, "", "--actor", "qa.lead", "plants", "delete", "1", "--yes")
	var be *model.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want business error\n%s", err, out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "[WARNING]") {
		t.Errorf("expected error and warning notices, got %s", out)
	}
	if p, _ := env.st.Plants().Get(context.Background(), 1); p == nil {
		t.Error("plant in use was deleted")
	}
}

func TestSelectAndEdit(t *testing.T) {
	env := startTestServer(t)

	if _, err := env.run(t, "", "assign", "edit"); err == nil {
		t.Fatal("edit without a selection should fail")
	}

	out, err := env.run(t, "", "assign", "select", "1")
	if err != nil {
		t.Fatalf("select: %v\n%s", err, out)
	}

	// A fresh process sees the selection.
	out, err = env.run(t, "", "selections")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "plant-assignment") {
		t.Errorf("selections output = %s", out)
	}

	out, err = env.run(t, "", "plant-assignments", "edit")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "101,102,103") {
		t.Errorf("edit should show the selection, got %s", out)
	}

	out, err = env.run(t, "", "--actor", "qa.lead", "--signature", "QL-2026",
		"plant-assignments", "edit", "--set", "userIds=101, 104", "--reason", "Shift rotation")
	if err != nil {
		t.Fatalf("edit: %v\n%s", err, out)
	}
	a, err := env.st.PlantAssignments().Get(context.Background(), 1)
	if err != nil || a == nil {
		t.Fatalf("get: %v", err)
	}
	if a.UserIDs.String() != "101,104" {
		t.Errorf("userIds = %s", a.UserIDs)
	}

	out, err = env.run(t, "", "selections")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No records selected.") {
		t.Errorf("selection should be cleared after a successful update, got %s", out)
	}
}

func TestBrowse_SearchAndDelete(t *testing.T) {
	env := startTestServer(t)

	script := strings.Join([]string{
		"North",
		"",
		":clear",
		":del 3",
		":yes",
		":q",
	}, "\n") + "\n"
	out, err := env.run(t, script, "--actor", "qa.lead", "plants", "browse")
	if err != nil {
		t.Fatalf("browse: %v\n%s", err, out)
	}
	for _, want := range []string{
		`Search: "North"`,
		"Delete Plant 3?",
		"[SUCCESS] Plant deleted successfully.",
		"Page 1 of 1 (2 records)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if p, _ := env.st.Plants().Get(context.Background(), 3); p != nil {
		t.Error("plant 3 still present")
	}
}

func TestBrowse_EditWithReason(t *testing.T) {
	env := startTestServer(t)

	script := strings.Join([]string{
		":edit 2",
		"location=Madurai",
		":save",
		"",
		"Office relocated",
		":q",
	}, "\n") + "\n"
	out, err := env.run(t, script, "--actor", "qa.lead", "--signature", "QL-2026", "plants", "browse")
	if err != nil {
		t.Fatalf("browse: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Editing Plant 2.") {
		t.Errorf("edit form not opened:\n%s", out)
	}
	if strings.Count(out, "[ERROR] "+listflow.ReasonRequiredText) != 1 {
		t.Errorf("expected one reason-required notice:\n%s", out)
	}
	if !strings.Contains(out, "[SUCCESS] Plant updated successfully.") {
		t.Errorf("output:\n%s", out)
	}
	p, _ := env.st.Plants().Get(context.Background(), 2)
	if p == nil || p.Location != "Madurai" {
		t.Errorf("stored = %+v", p)
	}
}

func TestBrowse_PagingAndUnknownCommand(t *testing.T) {
	env := startTestServer(t)

	script := ":size 2\n:n\n:n\n:p\n:p\n:bogus\n:del 9\n"
	out, err := env.run(t, script, "plants", "browse")
	if err != nil {
		t.Fatalf("browse: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Page 2 of 2 (3 records)",
		"Already on the last page.",
		"Already on the first page.",
		"Unknown command :bogus.",
		"Plant 9 is not on this page.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestApplySets(t *testing.T) {
	var d model.Document
	err := applySets(&d, model.DocumentEntity, []string{"documentNumber=SOP-9", "version= 3.0 ", "plantId=2"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Number != "SOP-9" || d.Version != "3.0" || d.PlantID != 2 {
		t.Errorf("document = %+v", d)
	}

	if err := applySets(&d, model.DocumentEntity, []string{"plantId=abc"}); err == nil {
		t.Error("non-numeric plantId should fail")
	}
	if err := applySets(&d, model.DocumentEntity, []string{"documentId=4"}); err == nil {
		t.Error("id must not be assignable")
	}
	if err := applySets(&d, model.DocumentEntity, []string{"novalue"}); err == nil {
		t.Error("missing = should fail")
	}

	var a model.PlantAssignment
	if err := applySets(&a, model.PlantAssignmentEntity, []string{"userIds=7,x,8"}); err != nil {
		t.Fatal(err)
	}
	if a.UserIDs.String() != "7,8" {
		t.Errorf("userIds = %v", a.UserIDs)
	}
}

func TestKebab(t *testing.T) {
	tests := map[string]string{
		"plantAssignments": "plant-assignments",
		"plants":           "plants",
		"plantAssignment":  "plant-assignment",
	}
	for in, want := range tests {
		if got := kebab(in); got != want {
			t.Errorf("kebab(%q) = %q, want %q", in, got, want)
		}
	}
}

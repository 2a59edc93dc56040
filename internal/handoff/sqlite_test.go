package handoff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/pkg/model"
)

var _ listflow.HandoffStore = (*SQLiteStore)(nil)

func TestPersistReadClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	clock := now
	st, err := Open(ctx, ":memory:", nil, WithNow(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := model.PlantAssignment{ID: 4, PlantID: 2, PlantName: "East", UserIDs: model.IDList{7, 9}}
	h, err := model.NewHandoff("assign", model.PlantAssignmentEntity, rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Persist(ctx, "assign", h); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, err := listflow.ReadSelection[model.PlantAssignment](ctx, st, "assign")
	if err != nil {
		t.Fatalf("ReadSelection: %v", err)
	}
	if got.ID != 4 || got.UserIDs.String() != "7,9" || got.PlantName != "East" {
		t.Errorf("record = %+v", got)
	}

	stored, _ := st.Read(ctx, "assign")
	if stored.Display["USERS"] != "7,9" {
		t.Errorf("display = %v", stored.Display)
	}

	if err := st.Clear(ctx, "assign"); err != nil {
		t.Fatal(err)
	}
	if h, _ := st.Read(ctx, "assign"); h != nil {
		t.Error("handoff survived Clear")
	}
}

func TestReadExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	clock := now
	st, err := Open(ctx, ":memory:", nil, WithNow(func() time.Time { return clock }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	h, _ := model.NewHandoff("plant-edit", model.PlantEntity, model.Plant{ID: 1, Code: "A", Name: "A"}, now)
	st.Persist(ctx, "plant-edit", h)
	other, _ := model.NewHandoff("doc-edit", model.DocumentEntity, model.Document{ID: 2, Number: "D", Title: "D", Version: "1"}, now.Add(time.Hour))
	st.Persist(ctx, "doc-edit", other)

	clock = now.Add(model.HandoffDuration + time.Minute)
	list, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list["doc-edit"] == nil {
		t.Errorf("List = %v, want only doc-edit", list)
	}

	_, err = listflow.ReadSelection[model.Plant](ctx, st, "plant-edit")
	var nse *listflow.NoSelectionError
	if !errors.As(err, &nse) {
		t.Errorf("expired read = %v, want NoSelectionError", err)
	}

	clock = now.Add(model.HandoffDuration + 2*time.Hour)
	n, err := st.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired = %d, %v", n, err)
	}
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "handoffs.db")
	st, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := model.Designation{ID: 3, Code: "QA", Name: "Quality"}
	if err := listflow.Select(ctx, st, nil, "designation-edit", "", model.DesignationEntity, rec, time.Now()); err != nil {
		t.Fatal(err)
	}
	st.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file: %v", err)
	}
	st, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	got, err := listflow.ReadSelection[model.Designation](ctx, st, "designation-edit")
	if err != nil || got != rec {
		t.Errorf("after reopen = %+v, %v", got, err)
	}
}

func TestCorruptDisplay(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := model.Plant{ID: 2, Code: "E", Name: "East"}
	h, err := model.NewHandoff("plant", model.PlantEntity, rec, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Persist(ctx, "plant", h); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := st.db.ExecContext(ctx, `UPDATE handoffs SET display = '{' WHERE key = 'plant'`); err != nil {
		t.Fatal(err)
	}

	if _, err := st.List(ctx); err == nil {
		t.Error("List succeeded with an unreadable display column")
	}
	if _, err := st.Read(ctx, "plant"); err == nil {
		t.Error("Read succeeded with an unreadable display column")
	}
}

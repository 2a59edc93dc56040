package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/me/mdconsole/internal/store"
	"github.com/me/mdconsole/pkg/model"
	"gopkg.in/yaml.v3"
)

// SeedData is the fixture loaded into an empty database. Field names follow
// the wire format, so a fixture reads like API payloads.
type SeedData struct {
	Actor            string                  `json:"actor"`
	Designations     []model.Designation     `json:"designations"`
	Plants           []model.Plant           `json:"plants"`
	PlantAssignments []model.PlantAssignment `json:"plantAssignments"`
	Documents        []model.Document        `json:"documents"`
}

// LoadSeed reads a YAML fixture. The YAML is converted to JSON first so the
// records decode through their wire tags.
func LoadSeed(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert seed %s: %w", path, err)
	}
	var seed SeedData
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	if seed.Actor == "" {
		seed.Actor = "seed"
	}
	return &seed, nil
}

// Seed inserts the fixture when the plants and designations tables are
// both empty, and reports whether anything was inserted. Plants are
// inserted first so assignments and documents can reference them by the
// ids they are given, in file order starting at 1.
func Seed(ctx context.Context, st store.Store, seed *SeedData, now time.Time) (bool, error) {
	_, plants, err := st.Plants().List(ctx, model.ListOptions{PageNumber: 1, PageSize: 1})
	if err != nil {
		return false, err
	}
	_, designations, err := st.Designations().List(ctx, model.ListOptions{PageNumber: 1, PageSize: 1})
	if err != nil {
		return false, err
	}
	if plants > 0 || designations > 0 {
		return false, nil
	}

	audit := model.Audit{Actor: seed.Actor, Reason: "seed", AuditOn: now.UTC()}
	if err := seedAll(ctx, st.Plants(), seed.Plants, audit); err != nil {
		return false, err
	}
	if err := seedAll(ctx, st.Designations(), seed.Designations, audit); err != nil {
		return false, err
	}
	if err := seedAll(ctx, st.PlantAssignments(), seed.PlantAssignments, audit); err != nil {
		return false, err
	}
	if err := seedAll(ctx, st.Documents(), seed.Documents, audit); err != nil {
		return false, err
	}
	return true, nil
}

func seedAll[T model.Record](ctx context.Context, repo store.Repository[T], recs []T, audit model.Audit) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return fmt.Errorf("seed record %d: %w", i, err)
		}
		if err := repo.Create(ctx, &recs[i], audit); err != nil {
			return fmt.Errorf("seed record %d: %w", i, err)
		}
	}
	return nil
}

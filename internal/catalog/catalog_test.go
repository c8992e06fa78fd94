package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/model"
)

const packYAML = `name: core
version: "1.2.0"
templates:
  - id: tpl-email
    tkey: email
    label: Email address
    helper_text: Work email preferred
    answer_type: text
    is_global: true
    category: contact
    validation:
      - type: required
        message: Email is required
      - type: pattern
        pattern: '^\S+@\S+$'
        message: Invalid email
  - id: tpl-country
    tkey: country
    label: Country
    answer_type: dropdown
    is_global: true
    category: contact
    options:
      - label: Kenya
        value: KE
      - label: Uganda
        value: UG
`

func writePack(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing pack: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writePack(t, dir, "core.yaml", packYAML)

	pack, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if pack.Name != "core" || pack.Version != "1.2.0" {
		t.Errorf("pack = %s/%s, want core/1.2.0", pack.Name, pack.Version)
	}
	if len(pack.Templates) != 2 {
		t.Fatalf("got %d templates, want 2", len(pack.Templates))
	}
	if pack.Checksum == "" {
		t.Error("Checksum empty")
	}
	if pack.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", pack.SourceFile, path)
	}

	email := pack.Templates[0]
	if email.AnswerType != model.AnswerText || len(email.Validation) != 2 {
		t.Errorf("email template parsed wrong: %+v", email)
	}
	if pack.Templates[1].Options[0].Value != "KE" {
		t.Errorf("dropdown options parsed wrong: %+v", pack.Templates[1].Options)
	}
}

func TestLoadAll_SkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "core.yaml", packYAML)
	writePack(t, dir, "README.md", "not a pack")

	packs, err := NewLoader().LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(packs) != 1 {
		t.Errorf("got %d packs, want 1", len(packs))
	}
}

func TestSeed_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "core.yaml", packYAML)
	packs, err := NewLoader().LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	st := store.NewMemoryStore()
	seeder := NewSeeder(st, nil)
	ctx := context.Background()

	if err := seeder.Seed(ctx, packs); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// Seeding again must update, not duplicate.
	if err := seeder.Seed(ctx, packs); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	templates, err := st.ListTemplates(ctx, store.TemplateFilters{})
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("got %d templates, want 2", len(templates))
	}

	tmpl, err := st.GetTemplate(ctx, "tpl-email")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if tmpl.CreatedBy != "catalog:core" {
		t.Errorf("CreatedBy = %q, want catalog:core", tmpl.CreatedBy)
	}
}

func TestSeed_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "bad.yaml", `name: bad
templates:
  - id: tpl-bad
    tkey: bad
    label: Bad
    answer_type: hologram
    is_global: true
`)
	packs, err := NewLoader().LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if err := NewSeeder(store.NewMemoryStore(), nil).Seed(context.Background(), packs); err == nil {
		t.Fatal("seeding an invalid answer type succeeded")
	}
}

func TestSeed_MissingID(t *testing.T) {
	packs := []Pack{{Name: "x", Templates: []PackTemplate{{TKey: "a", Label: "A", AnswerType: model.AnswerText, IsGlobal: true}}}}
	if err := NewSeeder(store.NewMemoryStore(), nil).Seed(context.Background(), packs); err == nil {
		t.Fatal("seeding a template without an id succeeded")
	}
}

// Package catalog loads question template packs from YAML files and seeds
// them into the store at startup. Packs let deployments ship a curated
// template library without touching the database by hand.
package catalog

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/model"
)

// Pack is one YAML template pack file.
type Pack struct {
	Name      string         `yaml:"name"`
	Version   string         `yaml:"version"`
	Templates []PackTemplate `yaml:"templates"`

	// Populated by the loader.
	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// PackTemplate is a template entry inside a pack. The ID must be stable
// across releases so re-seeding updates instead of duplicating.
type PackTemplate struct {
	ID               string                 `yaml:"id"`
	TKey             string                 `yaml:"tkey"`
	Label            string                 `yaml:"label"`
	HelperText       string                 `yaml:"helper_text"`
	AnswerType       model.AnswerType       `yaml:"answer_type"`
	Validation       []model.ValidationRule `yaml:"validation"`
	DefaultValue     string                 `yaml:"default_value"`
	Options          []model.PicklistOption `yaml:"options"`
	AvailableRegions []int                  `yaml:"available_regions"`
	IsGlobal         bool                   `yaml:"is_global"`
	Category         string                 `yaml:"category"`
	Tags             []string               `yaml:"tags"`
}

// Loader scans directories for YAML template packs and computes SHA-256
// checksums.
type Loader struct{}

// NewLoader creates a new pack Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files and
// parses each into a Pack.
func (l *Loader) LoadAll(directories []string) ([]Pack, error) {
	var packs []Pack

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			pack, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			packs = append(packs, pack)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return packs, nil
}

// LoadFile loads and parses a single pack file, computing its checksum and
// recording the source path.
func (l *Loader) LoadFile(path string) (Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return Pack{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	pack.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	pack.SourceFile = path
	return pack, nil
}

// Seeder writes loaded packs into the template store.
type Seeder struct {
	store     store.Store
	validator *schema.Validator
	logger    *zap.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(st store.Store, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		store:     st,
		validator: schema.NewValidator(),
		logger:    logger,
	}
}

// Seed upserts every template of every pack. Entries that fail structural
// validation are rejected with the offending path; a pack either seeds
// completely or not at all per template, never half a template.
func (s *Seeder) Seed(ctx context.Context, packs []Pack) error {
	for _, pack := range packs {
		for i, pt := range pack.Templates {
			if pt.ID == "" {
				return fmt.Errorf("pack %s: templates[%d]: id is required", pack.Name, i)
			}
			tmpl := model.QuestionTemplate{
				ID:               pt.ID,
				TKey:             pt.TKey,
				Label:            pt.Label,
				HelperText:       pt.HelperText,
				AnswerType:       pt.AnswerType,
				Validation:       pt.Validation,
				DefaultValue:     pt.DefaultValue,
				Options:          pt.Options,
				AvailableRegions: pt.AvailableRegions,
				IsGlobal:         pt.IsGlobal,
				Category:         pt.Category,
				Tags:             pt.Tags,
				Status:           model.StatusActive,
				CreatedBy:        "catalog:" + pack.Name,
			}
			if verrs := s.validator.ValidateTemplate(tmpl); len(verrs) > 0 {
				return fmt.Errorf("pack %s: templates[%d] (%s): %s",
					pack.Name, i, pt.ID, verrs[0].Error())
			}

			if err := s.upsert(ctx, tmpl); err != nil {
				return fmt.Errorf("pack %s: seeding %s: %w", pack.Name, pt.ID, err)
			}
		}
		s.logger.Info("template pack seeded",
			zap.String("pack", pack.Name),
			zap.String("version", pack.Version),
			zap.String("checksum", pack.Checksum),
			zap.Int("templates", len(pack.Templates)))
	}
	return nil
}

func (s *Seeder) upsert(ctx context.Context, tmpl model.QuestionTemplate) error {
	_, err := s.store.GetTemplate(ctx, tmpl.ID)
	if err == nil {
		return s.store.UpdateTemplate(ctx, tmpl)
	}
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) && ee.Code == model.ErrNotFound {
		return s.store.CreateTemplate(ctx, tmpl)
	}
	return err
}

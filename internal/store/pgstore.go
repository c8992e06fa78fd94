package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formsmith/formsmith/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgStore) Close() {
	s.pool.Close()
}

// CreateForm inserts a new form.
func (s *PgStore) CreateForm(ctx context.Context, f model.Form) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.Version == 0 {
		f.Version = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO forms (
			id, name, slug, description, form_type, region_id,
			status, version, has_published_version, published_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		f.ID, f.Name, f.Slug, f.Description, f.FormType, f.RegionID,
		f.Status, f.Version, f.HasPublishedVersion, f.PublishedAt,
		f.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// GetForm retrieves a form by ID.
func (s *PgStore) GetForm(ctx context.Context, id string) (model.Form, error) {
	var f model.Form
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, slug, description, form_type, region_id,
		       status, version, has_published_version, published_at,
		       created_at, updated_at
		FROM forms WHERE id = $1`, id,
	).Scan(
		&f.ID, &f.Name, &f.Slug, &f.Description, &f.FormType, &f.RegionID,
		&f.Status, &f.Version, &f.HasPublishedVersion, &f.PublishedAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Form{}, model.NewNotFoundError(fmt.Sprintf("form %q not found", id))
	}
	if err != nil {
		return model.Form{}, fmt.Errorf("query form: %w", err)
	}
	return f, nil
}

// UpdateForm persists an updated form with optimistic locking on version.
func (s *PgStore) UpdateForm(ctx context.Context, f model.Form) (model.Form, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE forms SET
			name = $1, slug = $2, description = $3, form_type = $4,
			status = $5, version = $6, has_published_version = $7,
			published_at = $8, updated_at = $9
		WHERE id = $10 AND version = $11`,
		f.Name, f.Slug, f.Description, f.FormType,
		f.Status, f.Version+1, f.HasPublishedVersion,
		f.PublishedAt, now,
		f.ID, f.Version,
	)
	if err != nil {
		return model.Form{}, fmt.Errorf("update form: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Form{}, model.NewConflictError(
			fmt.Sprintf("form %q version conflict (expected %d)", f.ID, f.Version),
		)
	}
	f.Version++
	f.UpdatedAt = now
	return f, nil
}

// ListForms returns forms matching the filters, newest first.
func (s *PgStore) ListForms(ctx context.Context, filters FormFilters) ([]model.Form, error) {
	query := `SELECT id, name, slug, description, form_type, region_id,
	                 status, version, has_published_version, published_at,
	                 created_at, updated_at
	          FROM forms WHERE 1=1`
	var args []any
	argIdx := 1

	if filters.RegionID != 0 {
		query += fmt.Sprintf(" AND region_id = $%d", argIdx)
		args = append(args, filters.RegionID)
		argIdx++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.FormType != "" {
		query += fmt.Sprintf(" AND form_type = $%d", argIdx)
		args = append(args, filters.FormType)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	var forms []model.Form
	for rows.Next() {
		var f model.Form
		if err := rows.Scan(
			&f.ID, &f.Name, &f.Slug, &f.Description, &f.FormType, &f.RegionID,
			&f.Status, &f.Version, &f.HasPublishedVersion, &f.PublishedAt,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// CreateSection inserts a new section.
func (s *PgStore) CreateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	stamp(&sec.Etag, &sec.Version, &sec.CreatedAt, &sec.UpdatedAt)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sections (
			id, form_id, name, description, display_order, is_active,
			status, etag, version, created_at, updated_at, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sec.ID, sec.FormID, sec.Name, sec.Description, sec.Order, sec.IsActive,
		sec.Status, sec.Etag, sec.Version, sec.CreatedAt, sec.UpdatedAt,
		sec.CreatedBy, sec.UpdatedBy,
	)
	if err != nil {
		return model.Section{}, fmt.Errorf("insert section: %w", err)
	}
	return sec, nil
}

// GetSection retrieves a section by ID.
func (s *PgStore) GetSection(ctx context.Context, id string) (model.Section, error) {
	var sec model.Section
	err := s.pool.QueryRow(ctx, `
		SELECT id, form_id, name, description, display_order, is_active,
		       status, etag, version, created_at, updated_at, created_by, updated_by
		FROM sections WHERE id = $1`, id,
	).Scan(
		&sec.ID, &sec.FormID, &sec.Name, &sec.Description, &sec.Order, &sec.IsActive,
		&sec.Status, &sec.Etag, &sec.Version, &sec.CreatedAt, &sec.UpdatedAt,
		&sec.CreatedBy, &sec.UpdatedBy,
	)
	if err == pgx.ErrNoRows {
		return model.Section{}, model.NewNotFoundError(fmt.Sprintf("section %q not found", id))
	}
	if err != nil {
		return model.Section{}, fmt.Errorf("query section: %w", err)
	}
	return sec, nil
}

// UpdateSection persists an updated section with etag compare-and-swap.
func (s *PgStore) UpdateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	newEtag := uuid.NewString()
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE sections SET
			name = $1, description = $2, display_order = $3, is_active = $4,
			status = $5, etag = $6, version = version + 1,
			updated_at = $7, updated_by = $8
		WHERE id = $9 AND etag = $10`,
		sec.Name, sec.Description, sec.Order, sec.IsActive,
		sec.Status, newEtag, now, sec.UpdatedBy,
		sec.ID, sec.Etag,
	)
	if err != nil {
		return model.Section{}, fmt.Errorf("update section: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Section{}, model.NewConflictError(
			fmt.Sprintf("section %q was modified by someone else", sec.ID),
		)
	}
	return s.GetSection(ctx, sec.ID)
}

// ArchiveSection archives a section and its questions in one transaction.
func (s *PgStore) ArchiveSection(ctx context.Context, sectionID, etag, actor string) (model.Section, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Section{}, fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE sections SET
			status = 'archived', is_active = false, etag = $1,
			version = version + 1, updated_at = $2, updated_by = $3
		WHERE id = $4 AND etag = $5`,
		uuid.NewString(), now, actor, sectionID, etag,
	)
	if err != nil {
		return model.Section{}, fmt.Errorf("archive section: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1)`, sectionID,
		).Scan(&exists); err != nil {
			return model.Section{}, fmt.Errorf("check section: %w", err)
		}
		if !exists {
			return model.Section{}, model.NewNotFoundError(fmt.Sprintf("section %q not found", sectionID))
		}
		return model.Section{}, model.NewConflictError(
			fmt.Sprintf("section %q was modified by someone else", sectionID),
		)
	}

	_, err = tx.Exec(ctx, `
		UPDATE questions SET
			status = 'archived', etag = gen_random_uuid()::text,
			version = version + 1, updated_at = $1, updated_by = $2
		WHERE section_id = $3 AND status <> 'archived'`,
		now, actor, sectionID,
	)
	if err != nil {
		return model.Section{}, fmt.Errorf("archive section questions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Section{}, fmt.Errorf("commit archive: %w", err)
	}
	return s.GetSection(ctx, sectionID)
}

// ListSections returns a form's sections ordered by (display_order, id).
func (s *PgStore) ListSections(ctx context.Context, formID string) ([]model.Section, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, form_id, name, description, display_order, is_active,
		       status, etag, version, created_at, updated_at, created_by, updated_by
		FROM sections WHERE form_id = $1
		ORDER BY display_order ASC, id ASC`, formID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var sec model.Section
		if err := rows.Scan(
			&sec.ID, &sec.FormID, &sec.Name, &sec.Description, &sec.Order, &sec.IsActive,
			&sec.Status, &sec.Etag, &sec.Version, &sec.CreatedAt, &sec.UpdatedAt,
			&sec.CreatedBy, &sec.UpdatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

const questionColumns = `id, form_id, section_id, display_order, question_template_id,
	tkey, label, helper_text, answer_type, required,
	validation, visibility, default_value, options, options_endpoint,
	depends_on, storage, status, etag, version,
	created_at, updated_at, created_by, updated_by`

// CreateQuestion inserts a new question.
func (s *PgStore) CreateQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	stamp(&q.Etag, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	validation, visibility, options, storage, err := marshalQuestionJSON(q)
	if err != nil {
		return model.Question{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (`+questionColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24
		)`,
		q.ID, q.FormID, q.SectionID, q.Order, nullable(q.QuestionTemplateID),
		q.TKey, q.Label, q.HelperText, q.AnswerType, q.Required,
		validation, visibility, q.DefaultValue, options, q.OptionsEndpoint,
		q.DependsOn, storage, q.Status, q.Etag, q.Version,
		q.CreatedAt, q.UpdatedAt, q.CreatedBy, q.UpdatedBy,
	)
	if err != nil {
		return model.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// GetQuestion retrieves a question by ID.
func (s *PgStore) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err == pgx.ErrNoRows {
		return model.Question{}, model.NewNotFoundError(fmt.Sprintf("question %q not found", id))
	}
	if err != nil {
		return model.Question{}, fmt.Errorf("query question: %w", err)
	}
	return q, nil
}

// UpdateQuestion persists an updated question with etag compare-and-swap.
func (s *PgStore) UpdateQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	validation, visibility, options, storage, err := marshalQuestionJSON(q)
	if err != nil {
		return model.Question{}, err
	}

	newEtag := uuid.NewString()
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE questions SET
			section_id = $1, display_order = $2, tkey = $3, label = $4,
			helper_text = $5, answer_type = $6, required = $7,
			validation = $8, visibility = $9, default_value = $10,
			options = $11, options_endpoint = $12, depends_on = $13,
			storage = $14, status = $15, etag = $16, version = version + 1,
			updated_at = $17, updated_by = $18
		WHERE id = $19 AND etag = $20`,
		q.SectionID, q.Order, q.TKey, q.Label,
		q.HelperText, q.AnswerType, q.Required,
		validation, visibility, q.DefaultValue,
		options, q.OptionsEndpoint, q.DependsOn,
		storage, q.Status, newEtag, now, q.UpdatedBy,
		q.ID, q.Etag,
	)
	if err != nil {
		return model.Question{}, fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Question{}, model.NewConflictError(
			fmt.Sprintf("question %q was modified by someone else", q.ID),
		)
	}
	return s.GetQuestion(ctx, q.ID)
}

// ListQuestions returns all questions of a form ordered by (display_order, id).
func (s *PgStore) ListQuestions(ctx context.Context, formID string) ([]model.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE form_id = $1 ORDER BY display_order ASC, id ASC`, formID)
}

// ListSectionQuestions returns a section's questions ordered by (display_order, id).
func (s *PgStore) ListSectionQuestions(ctx context.Context, sectionID string) ([]model.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE section_id = $1 ORDER BY display_order ASC, id ASC`, sectionID)
}

// CreateTemplate inserts a new question template.
func (s *PgStore) CreateTemplate(ctx context.Context, t model.QuestionTemplate) error {
	validation, err := json.Marshal(t.Validation)
	if err != nil {
		return fmt.Errorf("marshal template validation: %w", err)
	}
	options, err := json.Marshal(t.Options)
	if err != nil {
		return fmt.Errorf("marshal template options: %w", err)
	}
	storage, err := marshalStorage(t.Storage)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO question_templates (
			id, tkey, label, helper_text, answer_type, validation,
			default_value, options, storage, available_regions,
			is_global, category, tags, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.TKey, t.Label, t.HelperText, t.AnswerType, validation,
		t.DefaultValue, options, storage, t.AvailableRegions,
		t.IsGlobal, t.Category, t.Tags, t.Status, t.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by ID.
func (s *PgStore) GetTemplate(ctx context.Context, id string) (model.QuestionTemplate, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx, `
		SELECT id, tkey, label, helper_text, answer_type, validation,
		       default_value, options, storage, available_regions,
		       is_global, category, tags, status, created_by
		FROM question_templates WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return model.QuestionTemplate{}, model.NewNotFoundError(fmt.Sprintf("template %q not found", id))
	}
	if err != nil {
		return model.QuestionTemplate{}, fmt.Errorf("query template: %w", err)
	}
	return t, nil
}

// UpdateTemplate replaces a stored template.
func (s *PgStore) UpdateTemplate(ctx context.Context, t model.QuestionTemplate) error {
	validation, err := json.Marshal(t.Validation)
	if err != nil {
		return fmt.Errorf("marshal template validation: %w", err)
	}
	options, err := json.Marshal(t.Options)
	if err != nil {
		return fmt.Errorf("marshal template options: %w", err)
	}
	storage, err := marshalStorage(t.Storage)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE question_templates SET
			tkey = $1, label = $2, helper_text = $3, answer_type = $4,
			validation = $5, default_value = $6, options = $7, storage = $8,
			available_regions = $9, is_global = $10, category = $11,
			tags = $12, status = $13
		WHERE id = $14`,
		t.TKey, t.Label, t.HelperText, t.AnswerType,
		validation, t.DefaultValue, options, storage,
		t.AvailableRegions, t.IsGlobal, t.Category,
		t.Tags, t.Status, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("template %q not found", t.ID))
	}
	return nil
}

// ListTemplates returns templates matching all set filters, sorted by label.
func (s *PgStore) ListTemplates(ctx context.Context, filters TemplateFilters) ([]model.QuestionTemplate, error) {
	query := `SELECT id, tkey, label, helper_text, answer_type, validation,
	                 default_value, options, storage, available_regions,
	                 is_global, category, tags, status, created_by
	          FROM question_templates WHERE 1=1`
	var args []any
	argIdx := 1

	if !filters.IncludeArchived {
		query += " AND status <> 'archived'"
	}
	if filters.RegionID != 0 {
		query += fmt.Sprintf(" AND (is_global OR $%d = ANY(available_regions))", argIdx)
		args = append(args, filters.RegionID)
		argIdx++
	}
	if filters.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filters.Category)
		argIdx++
	}
	if filters.AnswerType != "" {
		query += fmt.Sprintf(" AND answer_type = $%d", argIdx)
		args = append(args, filters.AnswerType)
		argIdx++
	}
	if filters.Text != "" {
		query += fmt.Sprintf(
			" AND (label ILIKE $%d OR tkey ILIKE $%d OR helper_text ILIKE $%d)",
			argIdx, argIdx, argIdx,
		)
		args = append(args, "%"+strings.TrimSpace(filters.Text)+"%")
		argIdx++
	}

	query += " ORDER BY label ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []model.QuestionTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// TemplateUsage reports every question instantiated from a template.
func (s *PgStore) TemplateUsage(ctx context.Context, templateID string) ([]model.TemplateUsage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT q.form_id, COALESCE(f.name, ''), q.section_id, COALESCE(sec.name, ''),
		       q.id, q.status = 'active'
		FROM questions q
		LEFT JOIN forms f ON f.id = q.form_id
		LEFT JOIN sections sec ON sec.id = q.section_id
		WHERE q.question_template_id = $1
		ORDER BY q.form_id ASC, q.id ASC`, templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query template usage: %w", err)
	}
	defer rows.Close()

	var usage []model.TemplateUsage
	for rows.Next() {
		var u model.TemplateUsage
		if err := rows.Scan(&u.FormID, &u.FormName, &u.SectionID, &u.SectionName, &u.QuestionID, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan template usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// AppendHistory adds an entry to a form's history log.
func (s *PgStore) AppendHistory(ctx context.Context, entry model.FormHistoryEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal history changes: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO form_history (id, form_id, version, action, changes, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.FormID, entry.Version, entry.Action, changes, entry.Actor, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// GetHistory returns a form's history ordered by timestamp.
func (s *PgStore) GetHistory(ctx context.Context, formID string) ([]model.FormHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, form_id, version, action, changes, actor, created_at
		FROM form_history WHERE form_id = $1
		ORDER BY created_at ASC`, formID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []model.FormHistoryEntry
	for rows.Next() {
		var e model.FormHistoryEntry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.FormID, &e.Version, &e.Action, &changes, &e.Actor, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if changes != nil {
			_ = json.Unmarshal(changes, &e.Changes)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// queryQuestions executes a query and returns questions.
func (s *PgStore) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func marshalQuestionJSON(q model.Question) (validation, visibility, options, storage []byte, err error) {
	if validation, err = json.Marshal(q.Validation); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal validation: %w", err)
	}
	if visibility, err = json.Marshal(q.Visibility); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal visibility: %w", err)
	}
	if options, err = json.Marshal(q.Options); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal options: %w", err)
	}
	if storage, err = marshalStorage(q.Storage); err != nil {
		return nil, nil, nil, nil, err
	}
	return validation, visibility, options, storage, nil
}

func marshalStorage(sc *model.StorageConfig) ([]byte, error) {
	if sc == nil {
		return nil, nil
	}
	b, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal storage: %w", err)
	}
	return b, nil
}

func scanQuestion(row pgx.Row) (model.Question, error) {
	var q model.Question
	var templateID *string
	var validation, visibility, options, storage []byte

	err := row.Scan(
		&q.ID, &q.FormID, &q.SectionID, &q.Order, &templateID,
		&q.TKey, &q.Label, &q.HelperText, &q.AnswerType, &q.Required,
		&validation, &visibility, &q.DefaultValue, &options, &q.OptionsEndpoint,
		&q.DependsOn, &storage, &q.Status, &q.Etag, &q.Version,
		&q.CreatedAt, &q.UpdatedAt, &q.CreatedBy, &q.UpdatedBy,
	)
	if err != nil {
		return model.Question{}, err
	}
	if templateID != nil {
		q.QuestionTemplateID = *templateID
	}
	if validation != nil {
		_ = json.Unmarshal(validation, &q.Validation)
	}
	if visibility != nil {
		_ = json.Unmarshal(visibility, &q.Visibility)
	}
	if options != nil {
		_ = json.Unmarshal(options, &q.Options)
	}
	if storage != nil {
		q.Storage = &model.StorageConfig{}
		_ = json.Unmarshal(storage, q.Storage)
	}
	return q, nil
}

func scanTemplate(row pgx.Row) (model.QuestionTemplate, error) {
	var t model.QuestionTemplate
	var validation, options, storage []byte

	err := row.Scan(
		&t.ID, &t.TKey, &t.Label, &t.HelperText, &t.AnswerType, &validation,
		&t.DefaultValue, &options, &storage, &t.AvailableRegions,
		&t.IsGlobal, &t.Category, &t.Tags, &t.Status, &t.CreatedBy,
	)
	if err != nil {
		return model.QuestionTemplate{}, err
	}
	if validation != nil {
		_ = json.Unmarshal(validation, &t.Validation)
	}
	if options != nil {
		_ = json.Unmarshal(options, &t.Options)
	}
	if storage != nil {
		t.Storage = &model.StorageConfig{}
		_ = json.Unmarshal(storage, t.Storage)
	}
	return t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"formproof/internal/forms/models"
)

// PostgresStore reads published forms from the forms table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed form store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectForm = `
	SELECT id, slug, name, definition, created_at, updated_at
	FROM forms
`

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Form, error) {
	form, err := scanForm(s.db.QueryRowContext(ctx, selectForm+`WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find form by id: %w", err)
	}
	return form, nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Form, error) {
	form, err := scanForm(s.db.QueryRowContext(ctx, selectForm+`WHERE lower(slug) = lower($1)`, slug))
	if err != nil {
		return nil, fmt.Errorf("find form by slug: %w", err)
	}
	return form, nil
}

// Save upserts a form. It exists for seeding and tests; the form builder
// owns form authoring.
func (s *PostgresStore) Save(ctx context.Context, form *models.Form) error {
	if form == nil {
		return errors.New("form is required")
	}
	def, err := encodeDefinition(form.Definition)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO forms (id, slug, name, definition, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET slug = EXCLUDED.slug, name = EXCLUDED.name,
		    definition = EXCLUDED.definition, updated_at = NOW()
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRowContext(ctx, query, form.ID, form.Slug, form.Name, def).
		Scan(&form.CreatedAt, &form.UpdatedAt); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

func scanForm(row *sql.Row) (*models.Form, error) {
	var (
		form models.Form
		slug sql.NullString
		raw  []byte
	)
	if err := row.Scan(&form.ID, &slug, &form.Name, &raw, &form.CreatedAt, &form.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	form.Slug = slug.String
	def, err := models.DecodeDefinition(raw)
	if err != nil {
		return nil, err
	}
	form.Definition = def
	return &form, nil
}

func encodeDefinition(def map[string]any) ([]byte, error) {
	if def == nil {
		def = map[string]any{}
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode form definition: %w", err)
	}
	return raw, nil
}

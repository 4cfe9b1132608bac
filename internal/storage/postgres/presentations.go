package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muvico/platform/internal/domain/media"
	"github.com/muvico/platform/internal/domain/presentations"
)

// PresentationRepository persists presentations and their cues.
type PresentationRepository struct {
	db *sqlx.DB
}

// NewPresentationRepository constructs a repository using a pooled DB handle.
func NewPresentationRepository(db *sqlx.DB) *PresentationRepository {
	return &PresentationRepository{db: db}
}

type cueRow struct {
	ID               string         `db:"id"`
	PresentationID   string         `db:"presentation_id"`
	Index            int            `db:"cue_index"`
	Screen           int            `db:"screen"`
	Name             string         `db:"name"`
	Loop             bool           `db:"loop"`
	Color            string         `db:"color"`
	MediaKey         sql.NullString `db:"media_key"`
	MediaName        sql.NullString `db:"media_name"`
	MediaContentType sql.NullString `db:"media_content_type"`
	MediaKind        sql.NullString `db:"media_kind"`
	MediaSize        sql.NullInt64  `db:"media_size"`
}

func toCueRow(presentationID string, c presentations.Cue) cueRow {
	row := cueRow{
		ID:             c.ID,
		PresentationID: presentationID,
		Index:          c.Index,
		Screen:         c.Screen,
		Name:           c.Name,
		Loop:           c.Loop,
		Color:          c.Color,
	}
	if m := c.Media; m != nil {
		row.MediaKey = sql.NullString{String: m.Key, Valid: true}
		row.MediaName = sql.NullString{String: m.Name, Valid: true}
		row.MediaContentType = sql.NullString{String: m.ContentType, Valid: true}
		row.MediaKind = sql.NullString{String: string(m.Kind), Valid: true}
		row.MediaSize = sql.NullInt64{Int64: m.Size, Valid: true}
	}
	return row
}

func (row cueRow) cue() presentations.Cue {
	c := presentations.Cue{
		ID:             row.ID,
		PresentationID: row.PresentationID,
		Index:          row.Index,
		Screen:         row.Screen,
		Name:           row.Name,
		Loop:           row.Loop,
		Color:          row.Color,
	}
	if row.MediaKey.Valid {
		c.Media = &media.Media{
			Key:         row.MediaKey.String,
			Name:        row.MediaName.String,
			ContentType: row.MediaContentType.String,
			Kind:        media.Kind(row.MediaKind.String),
			Size:        row.MediaSize.Int64,
		}
	}
	return c
}

const presentationColumns = `id, user_id, name, screen_count, index_count, total_file_size, version, created_at, updated_at`

// FindByID retrieves a presentation and its cues.
func (r *PresentationRepository) FindByID(ctx context.Context, id string) (presentations.Presentation, error) {
	var p presentations.Presentation
	err := r.db.GetContext(ctx, &p, `SELECT `+presentationColumns+` FROM presentations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return presentations.Presentation{}, presentations.ErrNotFound
		}
		return presentations.Presentation{}, fmt.Errorf("find presentation: %w", err)
	}

	cues, err := r.fetchCues(ctx, p.ID)
	if err != nil {
		return presentations.Presentation{}, err
	}
	p.Cues = cues
	return p, nil
}

func (r *PresentationRepository) fetchCues(ctx context.Context, presentationID string) ([]presentations.Cue, error) {
	const query = `
        SELECT id, presentation_id, cue_index, screen, name, loop, color,
               media_key, media_name, media_content_type, media_kind, media_size
          FROM cues
         WHERE presentation_id = $1
         ORDER BY cue_index, screen
    `
	var rows []cueRow
	if err := r.db.SelectContext(ctx, &rows, query, presentationID); err != nil {
		return nil, fmt.Errorf("list cues: %w", err)
	}
	cues := make([]presentations.Cue, 0, len(rows))
	for _, row := range rows {
		cues = append(cues, row.cue())
	}
	return cues, nil
}

// ListByUser returns summaries of the user's presentations, oldest first.
func (r *PresentationRepository) ListByUser(ctx context.Context, userID string) ([]presentations.Summary, error) {
	const query = `
        SELECT p.id, p.user_id, p.name, p.screen_count, p.index_count, p.total_file_size, p.updated_at,
               COUNT(c.id) AS cue_count
          FROM presentations p
          LEFT JOIN cues c ON c.presentation_id = p.id
         WHERE p.user_id = $1
         GROUP BY p.id
         ORDER BY p.created_at, p.id
    `
	list := []presentations.Summary{}
	if err := r.db.SelectContext(ctx, &list, query, userID); err != nil {
		if isInvalidID(err) {
			return []presentations.Summary{}, nil
		}
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	return list, nil
}

// Save inserts or updates a presentation and replaces its cues. Updates are
// guarded by the version column.
func (r *PresentationRepository) Save(ctx context.Context, p presentations.Presentation) (presentations.Presentation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return presentations.Presentation{}, fmt.Errorf("begin tx: %w", err)
	}

	now := time.Now().UTC()
	if p.ID == "" {
		const insert = `
            INSERT INTO presentations (user_id, name, screen_count, index_count, total_file_size, version, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,1,$6,$7)
            RETURNING id
        `
		if err := tx.QueryRowxContext(ctx, insert,
			p.UserID,
			p.Name,
			p.ScreenCount,
			p.IndexCount,
			p.TotalFileSize,
			now,
			now,
		).Scan(&p.ID); err != nil {
			tx.Rollback()
			return presentations.Presentation{}, fmt.Errorf("insert presentation: %w", err)
		}
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
	} else {
		const update = `
            UPDATE presentations
               SET name = $3,
                   screen_count = $4,
                   index_count = $5,
                   total_file_size = $6,
                   version = version + 1,
                   updated_at = $7
             WHERE id = $1 AND version = $2
            RETURNING version, created_at
        `
		err := tx.QueryRowxContext(ctx, update,
			p.ID,
			p.Version,
			p.Name,
			p.ScreenCount,
			p.IndexCount,
			p.TotalFileSize,
			now,
		).Scan(&p.Version, &p.CreatedAt)
		if err != nil {
			tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				return presentations.Presentation{}, r.missingOrConflict(ctx, p.ID)
			}
			if isInvalidID(err) {
				return presentations.Presentation{}, presentations.ErrNotFound
			}
			return presentations.Presentation{}, fmt.Errorf("update presentation: %w", err)
		}
		p.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `DELETE FROM cues WHERE presentation_id = $1`, p.ID); err != nil {
			tx.Rollback()
			return presentations.Presentation{}, fmt.Errorf("clear cues: %w", err)
		}
	}

	cues := make([]presentations.Cue, len(p.Cues))
	for i, c := range p.Cues {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.PresentationID = p.ID
		c.URL = ""
		if c.Media != nil {
			m := *c.Media
			c.Media = &m
		}
		cues[i] = c
	}
	presentations.SortCues(cues)

	const insertCue = `
        INSERT INTO cues (id, presentation_id, cue_index, screen, name, loop, color,
                          media_key, media_name, media_content_type, media_kind, media_size)
        VALUES (:id, :presentation_id, :cue_index, :screen, :name, :loop, :color,
                :media_key, :media_name, :media_content_type, :media_kind, :media_size)
    `
	for _, c := range cues {
		if _, err := tx.NamedExecContext(ctx, insertCue, toCueRow(p.ID, c)); err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return presentations.Presentation{}, fmt.Errorf("%w: index %d screen %d", presentations.ErrSlotOccupied, c.Index, c.Screen)
			}
			return presentations.Presentation{}, fmt.Errorf("insert cue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return presentations.Presentation{}, fmt.Errorf("commit presentation: %w", err)
	}

	p.Cues = cues
	return p, nil
}

func (r *PresentationRepository) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM presentations WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check presentation: %w", err)
	}
	if !exists {
		return presentations.ErrNotFound
	}
	return presentations.ErrConflict
}

// Delete removes the presentation. Cues go with it through the foreign key.
func (r *PresentationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM presentations WHERE id = $1`, id)
	if isInvalidID(err) {
		return presentations.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete presentation: %w", err)
	}
	if n == 0 {
		return presentations.ErrNotFound
	}
	return nil
}

var _ presentations.Repository = (*PresentationRepository)(nil)

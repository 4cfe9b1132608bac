package presentations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/muvico/platform/internal/domain/media"
)

var (
	ErrNotImplemented      = errors.New("presentations repository: not implemented")
	ErrNotFound            = errors.New("presentation not found")
	ErrCueNotFound         = errors.New("cue not found")
	ErrConflict            = errors.New("presentation was modified concurrently")
	ErrSlotOccupied        = errors.New("a cue already occupies that slot")
	ErrOutOfBounds         = errors.New("index or screen out of bounds")
	ErrMediaScreenMismatch = errors.New("audio files belong on the audio screen and only there")
)

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

const (
	MaxScreens         = 8
	MaxIndexCount      = 350
	DefaultScreenCount = 4
	DefaultIndexCount  = 5
	maxNameLength      = 100
)

// Presentation is a grid of cues: IndexCount rows by ScreenCount visual
// screens plus one audio screen.
type Presentation struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	ScreenCount   int       `json:"screen_count" db:"screen_count"`
	IndexCount    int       `json:"index_count" db:"index_count"`
	TotalFileSize int64     `json:"total_file_size" db:"total_file_size"`
	Version       int       `json:"version" db:"version"`
	Cues          []Cue     `json:"cues" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Cue is a single cell of the grid.
type Cue struct {
	ID             string       `json:"id"`
	PresentationID string       `json:"-"`
	Index          int          `json:"index"`
	Screen         int          `json:"screen"`
	Name           string       `json:"name"`
	Loop           bool         `json:"loop"`
	Color          string       `json:"color,omitempty"`
	Media          *media.Media `json:"file,omitempty"`
	URL            string       `json:"url,omitempty"`
}

// Blank reports whether the cue has no file and renders black.
func (c Cue) Blank() bool {
	return c.Media == nil
}

// AudioScreen returns the screen number reserved for audio cues.
func (p Presentation) AudioScreen() int {
	return p.ScreenCount + 1
}

// Summary is the list view of a presentation.
type Summary struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	ScreenCount   int       `json:"screen_count" db:"screen_count"`
	IndexCount    int       `json:"index_count" db:"index_count"`
	TotalFileSize int64     `json:"total_file_size" db:"total_file_size"`
	CueCount      int       `json:"cue_count" db:"cue_count"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Repository abstracts presentation persistence. Save stores the presentation
// together with its cues. Updates must match the stored Version and return
// ErrConflict otherwise; the saved Version is incremented.
type Repository interface {
	FindByID(ctx context.Context, id string) (Presentation, error)
	ListByUser(ctx context.Context, userID string) ([]Summary, error)
	Save(ctx context.Context, p Presentation) (Presentation, error)
	Delete(ctx context.Context, id string) error
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (Presentation, error) {
	return Presentation{}, ErrNotImplemented
}

func (NullRepository) ListByUser(context.Context, string) ([]Summary, error) {
	return nil, ErrNotImplemented
}

func (NullRepository) Save(context.Context, Presentation) (Presentation, error) {
	return Presentation{}, ErrNotImplemented
}

func (NullRepository) Delete(context.Context, string) error {
	return ErrNotImplemented
}

// SortCues orders cues by index, then screen.
func SortCues(cues []Cue) {
	sort.SliceStable(cues, func(i, j int) bool {
		if cues[i].Index != cues[j].Index {
			return cues[i].Index < cues[j].Index
		}
		return cues[i].Screen < cues[j].Screen
	})
}

func (p *Presentation) findCue(id string) (int, error) {
	for i := range p.Cues {
		if p.Cues[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrCueNotFound, id)
}

func (p *Presentation) cueAt(index, screen int) (int, bool) {
	for i := range p.Cues {
		if p.Cues[i].Index == index && p.Cues[i].Screen == screen {
			return i, true
		}
	}
	return -1, false
}

func (p *Presentation) recomputeSize() {
	var total int64
	for _, c := range p.Cues {
		if c.Media != nil {
			total += c.Media.Size
		}
	}
	p.TotalFileSize = total
}

func (p *Presentation) mediaKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, c := range p.Cues {
		if c.Media != nil && c.Media.Key != "" {
			keys[c.Media.Key] = struct{}{}
		}
	}
	return keys
}

// Clone returns a deep copy so callers can mutate cues freely.
func (p Presentation) Clone() Presentation {
	out := p
	if p.Cues != nil {
		out.Cues = make([]Cue, len(p.Cues))
		for i, c := range p.Cues {
			if c.Media != nil {
				m := *c.Media
				c.Media = &m
			}
			out.Cues[i] = c
		}
	}
	return out
}

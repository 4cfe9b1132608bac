package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/muvico/platform/internal/domain/presentations"
)

// PresentationRepository is an in-memory implementation of presentations.Repository.
type PresentationRepository struct {
	mu            sync.RWMutex
	presentations map[string]presentations.Presentation
}

// NewPresentationRepository creates an in-memory presentation repo.
func NewPresentationRepository() *PresentationRepository {
	return &PresentationRepository{
		presentations: make(map[string]presentations.Presentation),
	}
}

func (r *PresentationRepository) FindByID(_ context.Context, id string) (presentations.Presentation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.presentations[id]
	if !ok {
		return presentations.Presentation{}, presentations.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PresentationRepository) ListByUser(_ context.Context, userID string) ([]presentations.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []presentations.Presentation
	for _, p := range r.presentations {
		if p.UserID == userID {
			list = append(list, p)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	out := make([]presentations.Summary, 0, len(list))
	for _, p := range list {
		out = append(out, presentations.Summary{
			ID:            p.ID,
			UserID:        p.UserID,
			Name:          p.Name,
			ScreenCount:   p.ScreenCount,
			IndexCount:    p.IndexCount,
			TotalFileSize: p.TotalFileSize,
			CueCount:      len(p.Cues),
			UpdatedAt:     p.UpdatedAt,
		})
	}
	return out, nil
}

func (r *PresentationRepository) Save(_ context.Context, p presentations.Presentation) (presentations.Presentation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = newID()
		p.CreatedAt = now
		p.Version = 0
	} else {
		existing, ok := r.presentations[p.ID]
		if !ok {
			return presentations.Presentation{}, presentations.ErrNotFound
		}
		if existing.Version != p.Version {
			return presentations.Presentation{}, presentations.ErrConflict
		}
		p.CreatedAt = existing.CreatedAt
	}
	p.Version++
	p.UpdatedAt = now

	p = p.Clone()
	if p.Cues == nil {
		p.Cues = []presentations.Cue{}
	}
	for idx := range p.Cues {
		if p.Cues[idx].ID == "" {
			p.Cues[idx].ID = newID()
		}
		p.Cues[idx].PresentationID = p.ID
		p.Cues[idx].URL = ""
	}
	presentations.SortCues(p.Cues)

	r.presentations[p.ID] = p
	return p.Clone(), nil
}

func (r *PresentationRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presentations[id]; !ok {
		return presentations.ErrNotFound
	}
	delete(r.presentations, id)
	return nil
}

var _ presentations.Repository = (*PresentationRepository)(nil)

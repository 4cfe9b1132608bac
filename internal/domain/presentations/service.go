package presentations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/media"
)

const maxSaveAttempts = 3

var errMediaStoreMissing = errors.New("media store not configured")

// MediaStore keeps cue files.
type MediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Observer receives notifications about cue operations.
type Observer interface {
	CueOperation(op string, err error)
	MediaStored(kind string, bytes int64)
}

type nopObserver struct{}

func (nopObserver) CueOperation(string, error) {}
func (nopObserver) MediaStored(string, int64)  {}

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Admin  bool
}

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateInput creates a presentation. Zero counts fall back to defaults.
type CreateInput struct {
	Name        string `json:"name"`
	ScreenCount int    `json:"screen_count"`
	IndexCount  int    `json:"index_count"`
}

// PresentationUpdate changes presentation settings. Nil fields are left
// unchanged.
type PresentationUpdate struct {
	Name        *string `json:"name"`
	ScreenCount *int    `json:"screen_count"`
	IndexCount  *int    `json:"index_count"`
}

// CueInput describes a new cue. A nil File creates a blank cue.
type CueInput struct {
	Index  int
	Screen int
	Name   string
	Loop   bool
	Color  string
	File   *Upload
}

// CueUpdate carries a partial cue update. Nil fields are left unchanged.
type CueUpdate struct {
	Name   *string
	Index  *int
	Screen *int
	Loop   *bool
	Color  *string
	File   *Upload
	Swap   bool
}

// Service provides business logic around presentations and their cue grid.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (Presentation, error)
	Get(ctx context.Context, actor Actor, id string) (Presentation, error)
	ListForUser(ctx context.Context, actor Actor, userID string) ([]Summary, error)
	Update(ctx context.Context, actor Actor, id string, update PresentationUpdate) (Presentation, error)
	Rename(ctx context.Context, actor Actor, id, name string) (Presentation, error)
	SetScreenCount(ctx context.Context, actor Actor, id string, n int) (Presentation, error)
	SetIndexCount(ctx context.Context, actor Actor, id string, n int) (Presentation, error)
	Delete(ctx context.Context, actor Actor, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error

	AddCue(ctx context.Context, actor Actor, id string, input CueInput) (Presentation, Cue, error)
	UpdateCue(ctx context.Context, actor Actor, id, cueID string, update CueUpdate) (Presentation, error)
	RemoveCue(ctx context.Context, actor Actor, id, cueID string) (Presentation, error)
	CopyCue(ctx context.Context, actor Actor, id, cueID string, index, screen int) (Presentation, Cue, error)
	InsertIndex(ctx context.Context, actor Actor, id string, at int) (Presentation, error)
	RemoveIndex(ctx context.Context, actor Actor, id string, at int) (Presentation, error)
	MediaURL(ctx context.Context, actor Actor, id, cueID string) (string, error)
}

// Options configures the presentation service.
type Options struct {
	Repo     Repository
	Store    MediaStore
	Limits   media.Limits
	URLTTL   time.Duration
	Observer Observer
	Logger   *zap.Logger
}

type service struct {
	repo     Repository
	store    MediaStore
	limits   media.Limits
	urlTTL   time.Duration
	observer Observer
	logger   *zap.Logger
}

// NewService builds a presentation service.
func NewService(opts Options) Service {
	s := &service{
		repo:     opts.Repo,
		store:    opts.Store,
		limits:   opts.Limits,
		urlTTL:   opts.URLTTL,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if s.repo == nil {
		s.repo = NullRepository{}
	}
	if s.limits == (media.Limits{}) {
		s.limits = media.DefaultLimits
	}
	if s.urlTTL <= 0 {
		s.urlTTL = 15 * time.Minute
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (Presentation, error) {
	name, err := normalizeName("name", input.Name)
	if err != nil {
		return Presentation{}, err
	}
	screens := input.ScreenCount
	if screens == 0 {
		screens = DefaultScreenCount
	}
	if err := checkScreenCount(screens); err != nil {
		return Presentation{}, err
	}
	indexes := input.IndexCount
	if indexes == 0 {
		indexes = DefaultIndexCount
	}
	if err := checkIndexCount(indexes); err != nil {
		return Presentation{}, err
	}

	return s.repo.Save(ctx, Presentation{
		UserID:      actor.UserID,
		Name:        name,
		ScreenCount: screens,
		IndexCount:  indexes,
	})
}

func (s *service) Get(ctx context.Context, actor Actor, id string) (Presentation, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return Presentation{}, err
	}
	return s.withURLs(ctx, p), nil
}

func (s *service) ListForUser(ctx context.Context, actor Actor, userID string) ([]Summary, error) {
	if userID != actor.UserID && !actor.Admin {
		return nil, ErrNotFound
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Update(ctx context.Context, actor Actor, id string, update PresentationUpdate) (Presentation, error) {
	var name string
	if update.Name != nil {
		var err error
		if name, err = normalizeName("name", *update.Name); err != nil {
			return Presentation{}, err
		}
	}
	return s.mutate(ctx, actor, id, "update_presentation", func(p *Presentation) error {
		if update.Name != nil {
			p.Name = name
		}
		if update.ScreenCount != nil {
			if err := p.setScreenCount(*update.ScreenCount); err != nil {
				return err
			}
		}
		if update.IndexCount != nil {
			if err := p.setIndexCount(*update.IndexCount); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Rename(ctx context.Context, actor Actor, id, name string) (Presentation, error) {
	name, err := normalizeName("name", name)
	if err != nil {
		return Presentation{}, err
	}
	return s.mutate(ctx, actor, id, "rename", func(p *Presentation) error {
		p.Name = name
		return nil
	})
}

func (s *service) SetScreenCount(ctx context.Context, actor Actor, id string, n int) (Presentation, error) {
	return s.mutate(ctx, actor, id, "set_screen_count", func(p *Presentation) error {
		return p.setScreenCount(n)
	})
}

func (s *service) SetIndexCount(ctx context.Context, actor Actor, id string, n int) (Presentation, error) {
	return s.mutate(ctx, actor, id, "set_index_count", func(p *Presentation) error {
		return p.setIndexCount(n)
	})
}

func (s *service) Delete(ctx context.Context, actor Actor, id string) error {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteObjects(ctx, p.mediaKeys())
	return nil
}

func (s *service) DeleteAllForUser(ctx context.Context, userID string) error {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	actor := Actor{UserID: userID}
	for _, summary := range list {
		if err := s.Delete(ctx, actor, summary.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete presentation %s: %w", summary.ID, err)
		}
	}
	return nil
}

func (s *service) AddCue(ctx context.Context, actor Actor, id string, input CueInput) (Presentation, Cue, error) {
	name, err := normalizeName("cue name", input.Name)
	if err != nil {
		return Presentation{}, Cue{}, err
	}
	color, err := normalizeColor(input.Color)
	if err != nil {
		return Presentation{}, Cue{}, err
	}

	current, err := s.load(ctx, actor, id)
	if err != nil {
		return Presentation{}, Cue{}, err
	}

	cue := Cue{
		ID:     uuid.NewString(),
		Index:  input.Index,
		Screen: input.Screen,
		Name:   name,
		Loop:   input.Loop,
		Color:  color,
	}

	if input.File != nil {
		m, err := s.describe(input.File, current.ID)
		if err != nil {
			return Presentation{}, Cue{}, err
		}
		cue.Media = &m
	}

	// Fail fast on grid problems before paying for an upload.
	probe := current.Clone()
	if err := probe.addCue(cue); err != nil {
		s.observer.CueOperation("add", err)
		return Presentation{}, Cue{}, err
	}
	if cue.Media != nil {
		if err := s.limits.Check(cue.Media.Size, current.TotalFileSize); err != nil {
			return Presentation{}, Cue{}, err
		}
		if err := s.upload(ctx, cue.Media, input.File); err != nil {
			return Presentation{}, Cue{}, err
		}
	}

	saved, err := s.mutate(ctx, actor, id, "add", func(p *Presentation) error {
		if cue.Media != nil {
			if err := s.limits.Check(cue.Media.Size, p.TotalFileSize); err != nil {
				return err
			}
		}
		return p.addCue(cue)
	})
	if err != nil {
		if cue.Media != nil {
			s.deleteObject(ctx, cue.Media.Key)
		}
		return Presentation{}, Cue{}, err
	}

	i, _ := saved.findCue(cue.ID)
	return saved, saved.Cues[i], nil
}

func (s *service) UpdateCue(ctx context.Context, actor Actor, id, cueID string, update CueUpdate) (Presentation, error) {
	var name, color string
	var err error
	if update.Name != nil {
		if name, err = normalizeName("cue name", *update.Name); err != nil {
			return Presentation{}, err
		}
	}
	if update.Color != nil {
		if color, err = normalizeColor(*update.Color); err != nil {
			return Presentation{}, err
		}
	}

	var newMedia *media.Media
	if update.File != nil {
		current, err := s.load(ctx, actor, id)
		if err != nil {
			return Presentation{}, err
		}
		i, err := current.findCue(cueID)
		if err != nil {
			return Presentation{}, err
		}
		m, err := s.describe(update.File, current.ID)
		if err != nil {
			return Presentation{}, err
		}
		if err := s.limits.Check(m.Size, current.TotalFileSize-mediaSize(current.Cues[i].Media)); err != nil {
			return Presentation{}, err
		}
		probe := current.Clone()
		if err := applyCueUpdate(&probe, cueID, update, name, color, &m); err != nil {
			s.observer.CueOperation("update", err)
			return Presentation{}, err
		}
		if err := s.upload(ctx, &m, update.File); err != nil {
			return Presentation{}, err
		}
		newMedia = &m
	}

	saved, err := s.mutate(ctx, actor, id, "update", func(p *Presentation) error {
		if newMedia != nil {
			i, err := p.findCue(cueID)
			if err != nil {
				return err
			}
			if err := s.limits.Check(newMedia.Size, p.TotalFileSize-mediaSize(p.Cues[i].Media)); err != nil {
				return err
			}
		}
		return applyCueUpdate(p, cueID, update, name, color, newMedia)
	})
	if err != nil && newMedia != nil {
		s.deleteObject(ctx, newMedia.Key)
	}
	return saved, err
}

func applyCueUpdate(p *Presentation, cueID string, update CueUpdate, name, color string, newMedia *media.Media) error {
	i, err := p.findCue(cueID)
	if err != nil {
		return err
	}
	cue := &p.Cues[i]
	if update.Name != nil {
		cue.Name = name
	}
	if update.Color != nil {
		cue.Color = color
	}
	if update.Loop != nil {
		cue.Loop = *update.Loop
	}
	if newMedia != nil {
		m := *newMedia
		cue.Media = &m
	}

	index, screen := cue.Index, cue.Screen
	if update.Index != nil {
		index = *update.Index
	}
	if update.Screen != nil {
		screen = *update.Screen
	}
	if err := p.moveCue(i, index, screen, update.Swap); err != nil {
		return err
	}
	p.recomputeSize()
	return nil
}

func (s *service) RemoveCue(ctx context.Context, actor Actor, id, cueID string) (Presentation, error) {
	return s.mutate(ctx, actor, id, "remove", func(p *Presentation) error {
		return p.removeCue(cueID)
	})
}

func (s *service) CopyCue(ctx context.Context, actor Actor, id, cueID string, index, screen int) (Presentation, Cue, error) {
	current, err := s.load(ctx, actor, id)
	if err != nil {
		return Presentation{}, Cue{}, err
	}
	i, err := current.findCue(cueID)
	if err != nil {
		return Presentation{}, Cue{}, err
	}

	copied := current.Cues[i]
	copied.ID = uuid.NewString()
	copied.Index, copied.Screen = index, screen
	copied.URL = ""
	if src := current.Cues[i].Media; src != nil {
		m := *src
		m.Key = media.Key(current.ID, uuid.NewString())
		copied.Media = &m
	}

	probe := current.Clone()
	if err := probe.addCue(copied); err != nil {
		s.observer.CueOperation("copy", err)
		return Presentation{}, Cue{}, err
	}
	if copied.Media != nil {
		if err := s.limits.Check(copied.Media.Size, current.TotalFileSize); err != nil {
			return Presentation{}, Cue{}, err
		}
		if s.store == nil {
			return Presentation{}, Cue{}, errMediaStoreMissing
		}
		if err := s.store.Copy(ctx, current.Cues[i].Media.Key, copied.Media.Key); err != nil {
			return Presentation{}, Cue{}, fmt.Errorf("copy media: %w", err)
		}
	}

	saved, err := s.mutate(ctx, actor, id, "copy", func(p *Presentation) error {
		if copied.Media != nil {
			if err := s.limits.Check(copied.Media.Size, p.TotalFileSize); err != nil {
				return err
			}
		}
		return p.addCue(copied)
	})
	if err != nil {
		if copied.Media != nil {
			s.deleteObject(ctx, copied.Media.Key)
		}
		return Presentation{}, Cue{}, err
	}
	j, _ := saved.findCue(copied.ID)
	return saved, saved.Cues[j], nil
}

func (s *service) InsertIndex(ctx context.Context, actor Actor, id string, at int) (Presentation, error) {
	return s.mutate(ctx, actor, id, "insert_index", func(p *Presentation) error {
		return p.insertIndex(at)
	})
}

func (s *service) RemoveIndex(ctx context.Context, actor Actor, id string, at int) (Presentation, error) {
	return s.mutate(ctx, actor, id, "remove_index", func(p *Presentation) error {
		return p.removeIndex(at)
	})
}

func (s *service) MediaURL(ctx context.Context, actor Actor, id, cueID string) (string, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return "", err
	}
	i, err := p.findCue(cueID)
	if err != nil {
		return "", err
	}
	if p.Cues[i].Media == nil {
		return "", fmt.Errorf("%w: cue %s has no file", ErrCueNotFound, cueID)
	}
	if s.store == nil {
		return "", errMediaStoreMissing
	}
	return s.store.SignedURL(ctx, p.Cues[i].Media.Key, s.urlTTL)
}

// load fetches a presentation visible to the actor. Presentations owned by
// someone else look missing unless the actor is an admin.
func (s *service) load(ctx context.Context, actor Actor, id string) (Presentation, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Presentation{}, err
	}
	if p.UserID != actor.UserID && !actor.Admin {
		return Presentation{}, ErrNotFound
	}
	return p, nil
}

// mutate applies fn to the latest stored state and saves it, retrying when
// a concurrent writer bumped the version. Files no longer referenced after a
// successful save are removed from the store.
func (s *service) mutate(ctx context.Context, actor Actor, id, op string, fn func(p *Presentation) error) (Presentation, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		p, err := s.load(ctx, actor, id)
		if err != nil {
			return Presentation{}, err
		}
		before := p.mediaKeys()

		if err := fn(&p); err != nil {
			s.observer.CueOperation(op, err)
			return Presentation{}, err
		}

		saved, err := s.repo.Save(ctx, p)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			s.logger.Debug("presentation save conflict, retrying",
				zap.String("presentation_id", id), zap.String("op", op), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			s.observer.CueOperation(op, err)
			return Presentation{}, err
		}

		after := saved.mediaKeys()
		for key := range after {
			delete(before, key)
		}
		s.deleteObjects(ctx, before)
		s.observer.CueOperation(op, nil)
		return s.withURLs(ctx, saved), nil
	}
	s.observer.CueOperation(op, lastErr)
	return Presentation{}, lastErr
}

func (s *service) describe(up *Upload, presentationID string) (media.Media, error) {
	if up.Body == nil {
		return media.Media{}, media.ErrEmptyFile
	}
	contentType, body, err := media.Sniff(up.Body, up.ContentType, up.Name)
	if err != nil {
		return media.Media{}, err
	}
	up.Body = body
	kind, err := media.Classify(contentType)
	if err != nil {
		return media.Media{}, err
	}
	if up.Size <= 0 {
		return media.Media{}, media.ErrEmptyFile
	}
	if s.limits.MaxFileSize > 0 && up.Size > s.limits.MaxFileSize {
		return media.Media{}, fmt.Errorf("%w: %d bytes exceeds %d", media.ErrFileTooLarge, up.Size, s.limits.MaxFileSize)
	}
	return media.Media{
		Key:         media.Key(presentationID, uuid.NewString()),
		Name:        up.Name,
		ContentType: contentType,
		Kind:        kind,
		Size:        up.Size,
	}, nil
}

func (s *service) upload(ctx context.Context, m *media.Media, up *Upload) error {
	if s.store == nil {
		return errMediaStoreMissing
	}
	if err := s.store.Put(ctx, m.Key, up.Body, m.Size, m.ContentType); err != nil {
		return fmt.Errorf("store media: %w", err)
	}
	s.observer.MediaStored(string(m.Kind), m.Size)
	return nil
}

func (s *service) withURLs(ctx context.Context, p Presentation) Presentation {
	if s.store == nil {
		return p
	}
	for i := range p.Cues {
		if p.Cues[i].Media == nil {
			continue
		}
		url, err := s.store.SignedURL(ctx, p.Cues[i].Media.Key, s.urlTTL)
		if err != nil {
			s.logger.Warn("sign media url failed",
				zap.String("presentation_id", p.ID), zap.String("cue_id", p.Cues[i].ID), zap.Error(err))
			continue
		}
		p.Cues[i].URL = url
	}
	return p
}

func (s *service) deleteObjects(ctx context.Context, keys map[string]struct{}) {
	for key := range keys {
		s.deleteObject(ctx, key)
	}
}

func (s *service) deleteObject(ctx context.Context, key string) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("delete media failed", zap.String("key", key), zap.Error(err))
	}
}

func mediaSize(m *media.Media) int64 {
	if m == nil {
		return 0
	}
	return m.Size
}

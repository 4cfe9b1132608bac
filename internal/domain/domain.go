package domain

import (
	"time"

	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/media"
	"github.com/muvico/platform/internal/domain/presentations"
	"github.com/muvico/platform/internal/domain/users"
)

// Container wires domain services together.
type Container struct {
	Users         users.Service
	Presentations presentations.Service
}

// Options configures the domain container.
type Options struct {
	UserRepo         users.Repository
	PresentationRepo presentations.Repository
	MediaStore       presentations.MediaStore
	Limits           media.Limits
	URLTTL           time.Duration
	Observer         presentations.Observer
	Logger           *zap.Logger
}

// New constructs a domain container with provided repositories.
func New(opts Options) Container {
	userRepo := opts.UserRepo
	if userRepo == nil {
		userRepo = users.NullRepository{}
	}

	presentationRepo := opts.PresentationRepo
	if presentationRepo == nil {
		presentationRepo = presentations.NullRepository{}
	}

	presentationSvc := presentations.NewService(presentations.Options{
		Repo:     presentationRepo,
		Store:    opts.MediaStore,
		Limits:   opts.Limits,
		URLTTL:   opts.URLTTL,
		Observer: opts.Observer,
		Logger:   opts.Logger,
	})

	return Container{
		Users:         users.NewService(userRepo, presentationSvc.DeleteAllForUser),
		Presentations: presentationSvc,
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain"
	"github.com/muvico/platform/internal/domain/presentations"
	"github.com/muvico/platform/internal/domain/users"
)

func newSeedCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo user with a sample presentation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logr, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := requirePostgres(a); err != nil {
				return err
			}

			u, p, err := seedDemo(cmd.Context(), a.Domain, username, password)
			if errors.Is(err, users.ErrUsernameExists) {
				logr.Info("demo user already present, nothing to seed", zap.String("username", username))
				return nil
			}
			if err != nil {
				return err
			}
			logr.Info("seed complete", zap.String("user_id", u.ID), zap.String("presentation_id", p.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "User: %s (%s)\nPresentation: %s (%s)\n", u.Username, u.ID, p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "demo", "demo account username")
	cmd.Flags().StringVar(&password, "password", "demo-password", "demo account password")
	return cmd
}

var demoCues = []presentations.CueInput{
	{Index: 0, Screen: 1, Name: "House lights", Color: "#000000"},
	{Index: 0, Screen: 2, Name: "Title card", Color: "#1f2937"},
	{Index: 1, Screen: 1, Name: "Act one", Loop: true},
	{Index: 2, Screen: 3, Name: "Intermission"},
}

// seedDemo registers a demo account and fills a presentation with blank cues.
func seedDemo(ctx context.Context, c domain.Container, username, password string) (users.User, presentations.Presentation, error) {
	u, err := c.Users.Register(ctx, users.RegisterInput{Username: username, Name: "Demo", Password: password})
	if err != nil {
		return users.User{}, presentations.Presentation{}, err
	}

	actor := presentations.Actor{UserID: u.ID, Admin: u.Admin}
	p, err := c.Presentations.Create(ctx, actor, presentations.CreateInput{Name: "Demo show"})
	if err != nil {
		return u, presentations.Presentation{}, fmt.Errorf("create presentation: %w", err)
	}
	for _, in := range demoCues {
		if p, _, err = c.Presentations.AddCue(ctx, actor, p.ID, in); err != nil {
			return u, p, fmt.Errorf("add cue %q: %w", in.Name, err)
		}
	}
	return u, p, nil
}

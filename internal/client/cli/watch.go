package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/session"
	"github.com/iudanet/estisync/internal/models"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
		focus    string
	)

	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Follow saves and collaborators of a document live",
		Example: `  # Follow until Ctrl+C
  estisync watch est-42

  # Announce the field you are looking at
  estisync watch est-42 --focus pricing/p1/price`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var focusPath *models.Path
			if focus != "" {
				p, err := models.ParsePath(focus)
				if err != nil {
					return err
				}
				focusPath = &p
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return a.watch(ctx, args[0], interval, focusPath)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "how often collaborator presence is refreshed")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 watches until interrupted)")
	cmd.Flags().StringVar(&focus, "focus", "", "field path to announce as focused")
	return cmd
}

func (a *app) watch(ctx context.Context, documentID string, interval time.Duration, focus *models.Path) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	s, closeSession, err := a.openSession(ctx, documentID, sessionOptions{live: true})
	if err != nil {
		return err
	}
	defer closeSession()

	// наблюдатели вызываются в отдельной горутине сессии; печатает только этот цикл
	updates := make(chan session.Status, 1)
	dispose := s.OnStatus(func(st session.Status) {
		select {
		case updates <- st:
		default:
		}
	})
	defer dispose()

	if focus != nil {
		if err := s.SetFocus(ctx, focus); err != nil {
			a.logger.Warn("Failed to announce focus", "path", focus.String(), "error", err)
		}
	}

	last := s.Document()
	a.io.Printf("Watching %s as %s (revision %d)\n", documentID, a.cfg.Client.ActorID, last.Revision)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastPresence := ""
	for {
		select {
		case <-ctx.Done():
			a.io.Println("Stopped watching")
			return nil
		case <-updates:
			doc := s.Document()
			changes := models.Diff(last, doc)
			if len(changes) > 0 || doc.Revision != last.Revision {
				a.io.Printf("Revision %d\n", doc.Revision)
				a.printChanges(changes)
			}
			last = doc
		case <-ticker.C:
			line := formatPresence(s.Presence())
			if line != lastPresence {
				a.io.Printf("Collaborators: %s\n", line)
				lastPresence = line
			}
		}
	}
}

func formatPresence(peers []models.CollaboratorPresence) string {
	if len(peers) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(peers))
	for _, p := range peers {
		name := p.ActorID
		if p.DisplayName != "" {
			name = p.DisplayName
		}
		switch {
		case p.TypingField != nil:
			name += " typing in " + p.TypingField.String()
		case p.FocusedField != nil:
			name += " on " + p.FocusedField.String()
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

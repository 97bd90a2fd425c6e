package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/api"
	"github.com/iudanet/estisync/internal/client/storage"
	"github.com/iudanet/estisync/internal/client/storage/boltdb"
	"github.com/iudanet/estisync/internal/models"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [document]",
		Short: "Show server health and unsaved local edits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(a.cfg.Client.ServerURL, a.logger)

			a.io.Println("=== Server ===")
			a.io.Printf("URL:    %s\n", client.BaseURL())
			health, err := client.Health(ctx)
			if err != nil {
				a.io.Printf("Status: unreachable (%v)\n", err)
			} else {
				a.io.Printf("Status: %s\n", health.Status)
				if health.Version != "" {
					a.io.Printf("Version: %s\n", health.Version)
				}
			}

			if len(args) == 0 {
				return nil
			}
			documentID := args[0]

			a.io.Println()
			a.io.Printf("=== Document %s ===\n", documentID)
			if err == nil {
				doc, loadErr := client.Load(ctx, documentID)
				switch {
				case errors.Is(loadErr, models.ErrDocumentNotFound):
					a.io.Println("Server revision: none (never saved)")
				case loadErr != nil:
					a.io.Printf("Server revision: unknown (%v)\n", loadErr)
				default:
					a.io.Printf("Server revision: %d\n", doc.Revision)
				}
			}
			return a.printDraftStatus(ctx, documentID)
		},
	}
}

// printDraftStatus показывает черновик из кэша, не создавая файл кэша
func (a *app) printDraftStatus(ctx context.Context, documentID string) error {
	path := a.cfg.Client.CachePath
	if path == "" {
		a.io.Println("Local cache: disabled")
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.io.Println("Unsaved edits: none")
		return nil
	}

	cache, err := boltdb.New(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	draft, err := cache.GetDraft(ctx, documentID)
	if errors.Is(err, storage.ErrDraftNotFound) {
		a.io.Println("Unsaved edits: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}

	if draft.Base == nil || draft.Local == nil {
		a.io.Println("Unsaved edits: none")
		return nil
	}
	changes := draft.Changes()
	if len(changes) == 0 {
		a.io.Println("Unsaved edits: none")
		return nil
	}
	a.io.Printf("Unsaved edits: %d (based on revision %d, cached %s)\n",
		len(changes), draft.Base.Revision, draft.SavedAt.Format("2006-01-02 15:04:05"))
	a.printChanges(changes)
	a.io.Printf("Run 'estisync sync %s' to save them.\n", documentID)
	return nil
}

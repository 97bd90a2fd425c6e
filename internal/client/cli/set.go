package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/session"
	"github.com/iudanet/estisync/internal/models"
)

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <document> <path> <json-value>",
		Short: "Set a field and save it",
		Long: `Set one field of a document and save it right away.

A path has the form kind/entity/field, where kind is estimate, line_item
or pricing. The value is any JSON value; strings need JSON quotes.

If another collaborator saved the same field first, the conflict is
resolved with --strategy or, from a terminal, by asking.`,
		Example: `  estisync set est-42 pricing/p1/price 120
  estisync set est-42 estimate/e1/title '"Roof repair"'
  estisync set est-42 line_item/l1/qty 3 --strategy merge`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := models.ParsePath(args[1])
			if err != nil {
				return err
			}
			raw := json.RawMessage(args[2])
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) (string, error) {
				return s.Mutate(ctx, path, raw, a.mutateOptions()...)
			})
		},
	}
}

func newUnsetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "unset <document> <path>",
		Short:   "Remove a field and save",
		Example: `  estisync unset est-42 line_item/l1/notes`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := models.ParsePath(args[1])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) (string, error) {
				return s.Unset(ctx, path, a.mutateOptions()...)
			})
		},
	}
}

// edit применяет одну правку и сохраняет документ.
// Если запись не удалась, правка остается черновиком в кэше.
func (a *app) edit(ctx context.Context, documentID string, fn func(context.Context, *session.Session) (string, error)) error {
	s, closeSession, err := a.openSession(ctx, documentID, sessionOptions{useCache: true})
	if err != nil {
		return err
	}
	defer closeSession()

	updateID, err := fn(ctx, s)
	if err != nil {
		return err
	}
	a.logger.Debug("Edit applied", "update_id", updateID, "pessimistic", a.flags.pessimistic)

	if err := a.save(ctx, s); err != nil {
		return err
	}
	a.io.Printf("Saved %s at revision %d\n", documentID, s.Status().Revision)
	return nil
}

// mutateOptions переводит глобальные флаги в опции правки
func (a *app) mutateOptions() []session.MutateOption {
	return []session.MutateOption{session.Optimistic(!a.flags.pessimistic)}
}

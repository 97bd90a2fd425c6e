package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/session"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document> <kind/entity>",
		Short: "Delete every field of an entity and save",
		Example: `  # Remove a line item
  estisync delete est-42 line_item/l3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseEntityRef(args[1])
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) (string, error) {
				return s.DeleteEntity(ctx, ref, a.mutateOptions()...)
			})
		},
	}
}

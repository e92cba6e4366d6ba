package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lini/domain"
)

func newShowCmd(app *App) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"search"},
		Short:   "Print the board, optionally filtered by a search query",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				query = args[0]
			}
			return app.withBoard(cmd, strings.TrimSpace(query), nil)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show cards whose title or description contains this text")
	return cmd
}

func newListCmds(app *App) []*cobra.Command {
	add := &cobra.Command{
		Use:   "add-list [TITLE]",
		Short: "Create a list at the end of the board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				if len(args) == 1 {
					b.prompt.answer = &args[0]
				}
				return b.ctrl.CreateList(ctx)
			})
		},
	}
	rename := &cobra.Command{
		Use:   "rename-list LIST TITLE",
		Short: "Rename a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID("list", args[0])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				if err := b.ctrl.RenameList(ctx, listID, args[1]); err != nil {
					return err
				}
				// Renames do not reload the board.
				_, err := b.sync.Resync(ctx, b.ctrl.Query())
				return err
			})
		},
	}
	del := &cobra.Command{
		Use:   "delete-list LIST",
		Short: "Delete a list and its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID("list", args[0])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				return b.ctrl.DeleteList(ctx, listID)
			})
		},
	}
	move := &cobra.Command{
		Use:   "move-list LIST INDEX",
		Short: "Move a list to a zero-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID("list", args[0])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				return b.ctrl.DropList(ctx, listID, index)
			})
		},
	}
	return []*cobra.Command{add, rename, del, move}
}

func newCardCmds(app *App) []*cobra.Command {
	add := &cobra.Command{
		Use:   "add-card LIST TITLE",
		Short: "Append a card to a list",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID("list", args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				return b.ctrl.CreateCard(ctx, listID, title)
			})
		},
	}

	move := &cobra.Command{
		Use:   "move-card CARD LIST INDEX",
		Short: "Move a card into a list at a zero-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			listID, err := parseID("list", args[1])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[2])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				return b.ctrl.DropCard(ctx, cardID, listID, index)
			})
		},
	}

	var title, desc, tag string
	edit := &cobra.Command{
		Use:   "edit-card CARD",
		Short: "Edit a card's title, description or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				if !b.ctrl.ClickCard(cardID, false) {
					return errUnknownCard(cardID)
				}
				var t, d *string
				var g *domain.Tag
				if flags.Changed("title") {
					t = &title
				}
				if flags.Changed("desc") {
					d = &desc
				}
				if flags.Changed("tag") {
					norm := domain.NormalizeTag(tag)
					g = &norm
				}
				b.ctrl.EditCard(t, d, g)
				return b.ctrl.SaveCard(ctx)
			})
		},
	}
	edit.Flags().StringVar(&title, "title", "", "New title (blank means Untitled)")
	edit.Flags().StringVar(&desc, "desc", "", "New description")
	edit.Flags().StringVar(&tag, "tag", "", "not_started, in_progress or finished")

	var quick bool
	del := &cobra.Command{
		Use:   "delete-card CARD",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				if quick {
					return b.ctrl.QuickDeleteCard(ctx, cardID)
				}
				if !b.ctrl.ClickCard(cardID, false) {
					return errUnknownCard(cardID)
				}
				defer b.ctrl.CloseCard()
				return b.ctrl.DeleteCard(ctx)
			})
		},
	}
	del.Flags().BoolVar(&quick, "quick", false, "Delete without confirmation")

	return []*cobra.Command{add, move, edit, del}
}

func newExportCmd(app *App) *cobra.Command {
	var stdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the board as JSON to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.noClipboard = stdout
			b, err := app.openBoard(commandContext(cmd), cmd, "", false)
			if err != nil {
				return err
			}
			defer b.close()
			_, err = b.ctrl.Export(commandContext(cmd))
			return err
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print instead of copying to the clipboard")
	return cmd
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every list and card and recreate the default lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBoard(cmd, "", func(ctx context.Context, b *board) error {
				return b.ctrl.Reset(ctx)
			})
		},
	}
}

type roleBody struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func newRoleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role USER ROLE",
		Short: "Change a member's role (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := domain.ParseRole(args[1])
			if role == domain.RoleNone {
				return errBadRole(args[1])
			}
			ctx := commandContext(cmd)
			b, err := app.openBoard(ctx, cmd, "", true)
			if err != nil {
				return err
			}
			defer b.close()
			_, err = b.channel.Send(ctx, b.endpoints.Snapshot+"role/", roleBody{UserID: args[0], Role: string(role)})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], role)
			return nil
		},
	}
}

func errUnknownCard(id int64) error {
	return fmt.Errorf("card %d is not on the board", id)
}

func errBadRole(raw string) error {
	return fmt.Errorf("unknown role %q; use admin, mentor, student or spectator", raw)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

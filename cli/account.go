package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"lini/api"
	"lini/command"
	"lini/domain"
)

type membership struct {
	BoardID  int64       `json:"board_id"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

type boardsBody struct {
	Boards    []membership `json:"boards"`
	CSRFToken string       `json:"csrf_token"`
}

type created struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

// account talks to the board-independent routes.
type account struct {
	channel *command.Channel
	tokens  *command.PageToken
	base    string
}

func (a *App) account() *account {
	tokens := &command.PageToken{}
	return &account{
		channel: command.New(tokens, a.cfg.Token, a.logger),
		tokens:  tokens,
		base:    strings.TrimRight(a.cfg.BaseURL, "/") + "/api/boards/",
	}
}

// boards lists the caller's boards and picks up an anti-forgery token.
func (ac *account) boards(ctx context.Context) ([]membership, error) {
	data, err := ac.channel.Fetch(ctx, ac.base)
	if err != nil {
		return nil, describe(err)
	}
	var body boardsBody
	if err := sonic.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode boards: %w", err)
	}
	ac.tokens.Set(body.CSRFToken)
	return body.Boards, nil
}

func (ac *account) post(ctx context.Context, path string, payload any) (int64, error) {
	if _, err := ac.boards(ctx); err != nil {
		return 0, err
	}
	raw, err := ac.channel.Send(ctx, ac.base+path, payload)
	if err != nil {
		return 0, describe(err)
	}
	var resp created
	if err := command.Decode(raw, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func newBoardsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the boards you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			boards, err := app.account().boards(commandContext(cmd))
			if err != nil {
				return err
			}
			if len(boards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dim.Render("no boards yet; create one with `boardctl create-board`"))
				return nil
			}
			rows := make([]string, 0, len(boards))
			for _, b := range boards {
				id := lipgloss.NewStyle().Width(8).Render("#" + strconv.FormatInt(b.BoardID, 10))
				role := lipgloss.NewStyle().Width(11).Foreground(accent).Render(b.Role.String())
				rows = append(rows, id+role+b.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinVertical(lipgloss.Left, rows...))
			return nil
		},
	}
}

func newCreateBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create-board [NAME]",
		Short: "Create a board you administer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.account().post(commandContext(cmd), "create/", map[string]string{"name": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created board %d\n", id)
			return nil
		},
	}
}

func newJoinCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join a board as a spectator using its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.account().post(commandContext(cmd), "join/", map[string]string{"join_code": args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined board %d\n", id)
			return nil
		},
	}
}

func newTokenCmd(app *App) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token USER",
		Short: "Mint a bearer token for a board API running with AUTH_TEST_MODE=1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = app.getenv("TEST_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("pass --secret or set TEST_JWT_SECRET")
			}
			tok, err := api.SignTestToken([]byte(secret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Shared HS256 secret (default $TEST_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

// Package cli is the boardctl command line: it drives the board controller
// against a running board API and prints the result.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lini/command"
	"lini/config"
	"lini/controller"
	"lini/domain"
	"lini/snapshot"
)

// App holds the flags shared by every command.
type App struct {
	ConfigPath string
	BoardID    int64
	Yes        bool
	Debug      bool

	noClipboard bool

	getenv config.Getenv
	cfg    config.Client
	logger *log.Logger
}

// NewRootCmd builds the boardctl command tree. getenv supplies environment
// overrides; nil means os.Getenv.
func NewRootCmd(getenv config.Getenv) *cobra.Command {
	if getenv == nil {
		getenv = os.Getenv
	}
	app := &App{getenv: getenv}

	cmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Work with a shared kanban board from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Show board 4, filtered
  boardctl --board 4 show --query report

  # Move card 12 to the top of list 3
  boardctl --board 4 move-card 12 3 0
`),
	}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", getenv("BOARDCTL_CONFIG"), "Path to a YAML config file")
	cmd.PersistentFlags().Int64Var(&app.BoardID, "board", 0, "Board id (overrides board_id / BOARD_ID)")
	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Answer yes to every confirmation")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Log requests to stderr")

	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newListCmds(app)...)
	cmd.AddCommand(newCardCmds(app)...)
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newResetCmd(app))
	cmd.AddCommand(newRoleCmd(app))
	cmd.AddCommand(newBoardsCmd(app))
	cmd.AddCommand(newCreateBoardCmd(app))
	cmd.AddCommand(newJoinCmd(app))
	cmd.AddCommand(newTokenCmd(app))
	return cmd
}

func (a *App) load(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(a.ConfigPath, a.getenv)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("board") {
		cfg.BoardID = a.BoardID
	}
	a.cfg = cfg

	a.logger = log.New()
	a.logger.SetOutput(cmd.ErrOrStderr())
	a.logger.SetLevel(log.WarnLevel)
	if a.Debug || cfg.Debug {
		a.logger.SetLevel(log.DebugLevel)
	}
	return nil
}

// board is one controller bound to the configured board.
type board struct {
	ctrl      *controller.Controller
	view      *terminal
	sync      *snapshot.Resyncer
	channel   *command.Channel
	prompt    *prompter
	endpoints command.Endpoints
	close     func()
}

// openBoard loads the board once to learn the caller's role, then builds a
// controller for that role. Commands that write pass fresh so the first load
// skips the snapshot cache and picks up an anti-forgery token.
func (a *App) openBoard(ctx context.Context, cmd *cobra.Command, query string, fresh bool) (*board, error) {
	if a.cfg.BoardID == 0 {
		return nil, fmt.Errorf("no board selected; pass --board or set BOARD_ID")
	}
	tokens := &command.PageToken{}
	ch := command.New(tokens, a.cfg.Token, a.logger)
	endpoints := a.cfg.BoardEndpoints()
	view := newTerminal(cmd.OutOrStdout(), cmd.ErrOrStderr())

	var (
		src     snapshot.Source = snapshot.NewHTTPSource(ch, endpoints.Snapshot)
		closeFn                 = func() {}
	)
	if a.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		closeFn = func() { _ = rc.Close() }
		src = snapshot.NewCache(src, rc, a.cfg.SnapshotCacheTTL, a.cfg.BoardID, cacheScope(a.cfg.Token))
	}
	sync := snapshot.NewResyncer(src, view, tokens, a.logger)

	load := sync.Load
	if fresh {
		load = sync.Resync
	}
	first, err := load(ctx, query)
	if err != nil {
		closeFn()
		return nil, describe(err)
	}
	prompt := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr(), a.Yes)
	var clip controller.Clipboard = systemClipboard{}
	if a.noClipboard {
		clip = nil
	}
	ctrl := controller.New(controller.Config{
		Role:           first.Role,
		Endpoints:      endpoints,
		SearchDebounce: a.cfg.SearchDebounce,
		Logger:         a.logger,
	}, controller.Deps{
		Sender:    ch,
		Fetcher:   ch,
		Sync:      sync,
		Presenter: view,
		Dialogs:   prompt,
		Clipboard: clip,
		CardView:  view,
	})
	if err := ctrl.Init(ctx, query); err != nil {
		ctrl.Close()
		closeFn()
		return nil, err
	}
	return &board{
		ctrl:      ctrl,
		view:      view,
		sync:      sync,
		channel:   ch,
		prompt:    prompt,
		endpoints: endpoints,
		close: func() {
			ctrl.Close()
			closeFn()
		},
	}, nil
}

// cacheScope keys cached snapshots by credential so two users never share
// an entry.
func cacheScope(token string) string {
	if token == "" {
		return "anonymous"
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(token)).String()
}

// withBoard runs fn against the board and prints it afterwards.
func (a *App) withBoard(cmd *cobra.Command, query string, fn func(ctx context.Context, b *board) error) error {
	ctx := commandContext(cmd)
	b, err := a.openBoard(ctx, cmd, query, fn != nil)
	if err != nil {
		return err
	}
	defer b.close()
	if fn != nil {
		if err := fn(ctx, b); err != nil {
			b.view.Flush()
			return err
		}
	}
	b.view.Flush()
	return nil
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return n, nil
}

// describe turns service rejections into readable errors.
func describe(err error) error {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return fmt.Errorf("board api answered %d: %s", remote.Status, strings.TrimSpace(remote.Body))
	}
	return err
}

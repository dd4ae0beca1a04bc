package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolftalk/wolftalk/client"
	"github.com/wolftalk/wolftalk/config"
	"github.com/wolftalk/wolftalk/store"
)

// app carries what every command needs once the root command has run its
// setup.
type app struct {
	cfgPath string
	baseURL string
	session string
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
	api    *client.Client
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "wolftalk",
		Short: "WolfTalk campus forum client and server",
		Long: `wolftalk talks to a WolfTalk server: browse department boards, post,
vote, comment, and read direct messages. "wolftalk serve" runs the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, stderr)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "wolftalk.yaml", "configuration file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "server base URL (overrides config)")
	root.PersistentFlags().StringVar(&a.session, "session", "", "SSO session cookie value (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(a),
		newDepartmentsCmd(a),
		newBoardCmd(a),
		newRecentCmd(a),
		newPostCmd(a),
		newVoteCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newCommentCmd(a),
		newConversationsCmd(a),
		newChatCmd(a),
		newFriendsCmd(a),
		newProfileCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, stderr io.Writer) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	if a.session != "" {
		cfg.Client.Session = a.session
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logger(stderr)
	a.api = client.New(cfg.Client.BaseURL, a.logger)
	a.api.HTTP.Timeout = cfg.ClientTimeout()
	if cfg.Client.Session != "" {
		a.api.Session = &http.Cookie{Name: cfg.Client.SessionCookie, Value: cfg.Client.Session}
	}
	a.api.Identity = cfg.Client.UnityID
	a.logger.Debug("Configured", "command", cmd.Name(), "base_url", cfg.Client.BaseURL)
	return nil
}

// signIn returns the signed-in user, or an error carrying the SSO login URL.
func (a *app) signIn(ctx context.Context) (*store.UserStore, *client.Profile, error) {
	users := store.NewUserStore(a.api, a.logger)
	me, err := users.FetchCurrent(ctx)
	if err != nil {
		return nil, nil, err
	}
	if me == nil {
		return nil, nil, fmt.Errorf("%w: sign in at %s", store.ErrSignedOut, a.api.LoginURL("/"))
	}
	return users, me, nil
}

// viewer returns the signed-in user's unity id, or "" for anonymous browsing.
func (a *app) viewer(ctx context.Context) (string, error) {
	_, me, err := a.signIn(ctx)
	switch {
	case errors.Is(err, store.ErrSignedOut), errors.Is(err, client.ErrUnauthorized):
		return "", nil
	case err != nil:
		return "", err
	}
	return me.UnityID, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

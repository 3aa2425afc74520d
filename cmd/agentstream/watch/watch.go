// Package watchcmder provides the watch command, which subscribes to an agent
// session stream and renders its events live.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/agentstream/pkg/cliui"
	"github.com/papercomputeco/agentstream/pkg/config"
	"github.com/papercomputeco/agentstream/pkg/dotdir"
	"github.com/papercomputeco/agentstream/pkg/logger"
	"github.com/papercomputeco/agentstream/pkg/stream"
)

// ErrGaveUp is returned when the stream hit its retry ceiling.
var ErrGaveUp = errors.New("stream gave up reconnecting")

type watchCommander struct {
	flags config.FlagSet

	configDir string
	debug     bool
	raw       bool
	markdown  bool

	// Bound to viper in PreRunE; read back through viper so config.toml and
	// env values apply when a flag is not set.
	baseURL      string
	user         string
	environment  string
	maxAttempts  int
	baseDelay    time.Duration
	maxLineBytes int

	// baseURLPinned is set when --base-url was passed; a resumed session
	// then uses it instead of the recorded base URL.
	baseURLPinned bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

const watchLongDesc string = `Watch an agent session stream.

Subscribes to GET <base-url>/agent/stream/<session-id> and renders every
event as it arrives: assistant tokens, tool calls and results, phase changes,
artifacts, approval requests and pipeline progress. Dropped connections are
retried with exponential backoff until the session completes or the retry
ceiling is reached. Ctrl-C cancels the subscription.

Without a session id, the last session that did not complete is resumed
against the base URL it was watched on, unless --base-url, the environment
or config.toml names one.

Examples:
  agentstream watch 7f3c2a
  agentstream watch 7f3c2a --base-url https://agents.example.com/api --user alice
  agentstream watch 7f3c2a --markdown
  agentstream watch --raw 2> wire.log`

const watchShortDesc string = "Watch an agent session stream"

var watchFlags = []string{
	config.FlagBaseURL,
	config.FlagUser,
	config.FlagEnvironment,
	config.FlagMaxAttempts,
	config.FlagBaseDelay,
	config.FlagMaxLineBytes,
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "watch [session-id]",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, watchFlags)
			cmder.viper = v
			cmder.baseURLPinned = cmd.Flags().Changed(config.FlagBaseURL)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, sessionID)
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagUser, &cmder.user)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEnvironment, &cmder.environment)
	config.AddIntFlag(cmd, cmder.flags, config.FlagMaxAttempts, &cmder.maxAttempts)
	config.AddDurationFlag(cmd, cmder.flags, config.FlagBaseDelay, &cmder.baseDelay)
	config.AddIntFlag(cmd, cmder.flags, config.FlagMaxLineBytes, &cmder.maxLineBytes)
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Mirror the raw wire bytes to stderr")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each completed assistant message as markdown")

	return cmd
}

func (c *watchCommander) run(ctx context.Context, sessionID string) error {
	log, closeLog, err := logger.NewWithFile(c.viper.GetString("log.file"),
		logger.WithDebug(c.debug),
		logger.WithJSON(c.viper.GetBool("log.json")),
		logger.WithPretty(c.viper.GetBool("log.pretty") || cliui.IsTerminal(c.errOut)),
		logger.WithWriter(c.errOut),
	)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	sc := config.StreamFromViper(c.viper)

	ddm := dotdir.NewManager()
	if sessionID == "" {
		last, err := ddm.LoadSessionState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading last session: %w", err)
		}
		if last == nil {
			return errors.New("no session id given and no previous session to resume")
		}
		sessionID = last.SessionID
		if last.BaseURL != "" && !c.baseURLPinned && !config.Explicit(c.viper, "stream.base_url") {
			sc.BaseURL = last.BaseURL
		}
		c.logger.Info("resuming last session",
			"session_id", sessionID,
			"base_url", sc.BaseURL,
			"watched_at", last.WatchedAt,
		)
	}

	cc, err := sc.ClientConfig()
	if err != nil {
		return err
	}

	client, err := stream.New(cc, c.logger)
	if err != nil {
		return fmt.Errorf("creating stream client: %w", err)
	}
	defer client.Close()

	renderer := cliui.NewRenderer(c.out, cliui.WithMarkdown(c.markdown))

	opts := []stream.SubscribeOption{stream.WithStateObserver(renderer.Observe)}
	if c.raw {
		opts = append(opts, stream.WithRawTee(c.errOut))
	}

	sub, err := client.Subscribe(context.WithoutCancel(ctx), sessionID, renderer.Handlers(), opts...)
	if err != nil {
		return err
	}

	err = ddm.SaveSessionState(&dotdir.SessionState{
		SessionID: sessionID,
		BaseURL:   sc.BaseURL,
		WatchedAt: time.Now().UTC(),
	}, c.configDir)
	if err != nil {
		c.logger.Warn("could not remember session", "error", err)
	}

	// Ctrl-C disposes the subscription; it never outlives the command.
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()

	switch sub.Wait() {
	case stream.ReasonDone:
		// Nothing left to resume.
		if err := ddm.ClearSessionState(c.configDir); err != nil {
			c.logger.Warn("could not forget completed session", "error", err)
		}
	case stream.ReasonFatal:
		return fmt.Errorf("%w after %d retries", ErrGaveUp, cc.Policy.MaxAttempts)
	case stream.ReasonCancelled:
		fmt.Fprintf(c.errOut, "\n  %s\n", cliui.DimStyle.Render("cancelled"))
	}

	return nil
}

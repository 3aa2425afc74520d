// Package replaycmder provides the replay command, a local backend that
// serves recorded agent sessions over the stream wire format.
package replaycmder

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
	"github.com/papercomputeco/agentstream/pkg/logger"
	"github.com/papercomputeco/agentstream/pkg/replay"
)

type replayCommander struct {
	flags config.FlagSet

	configDir string
	debug     bool

	listen    string
	dir       string
	lineDelay time.Duration
	failFirst int
	cutAfter  int
	follow    bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
}

const replayLongDesc string = `Serve recorded agent sessions.

Each <session-id>.sse file in the fixture directory is replayed line by line
on GET /agent/stream/<session-id>, exactly as a live backend would stream it.
Point "agentstream watch --base-url" at this server to develop against a
recorded session.

Failure injection exercises client reconnects:
  --fail-first N   answer the first N requests per session with 503
  --cut-after N    drop the first successful response after N lines

With --follow, responses stay open after the last recorded line and stream
whatever is appended to the fixture until a "data: [DONE]" line arrives.

Examples:
  agentstream replay --dir ./sessions
  agentstream replay --line-delay 200ms --fail-first 2
  agentstream replay --cut-after 5
  agentstream replay --follow`

const replayShortDesc string = "Serve recorded agent sessions"

var replayFlags = []string{
	config.FlagReplayListen,
	config.FlagReplayDir,
	config.FlagReplayLineDelay,
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, replayFlags)
			cmder.viper = v

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cmd.ErrOrStderr())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagReplayListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagReplayDir, &cmder.dir)
	config.AddDurationFlag(cmd, cmder.flags, config.FlagReplayLineDelay, &cmder.lineDelay)
	cmd.Flags().IntVar(&cmder.failFirst, "fail-first", 0, "Answer the first N requests per session with 503")
	cmd.Flags().IntVar(&cmder.cutAfter, "cut-after", 0, "Drop the first successful response per session after N lines")
	cmd.Flags().BoolVar(&cmder.follow, "follow", false, "Stream lines appended to a fixture until it is done")

	return cmd
}

func (c *replayCommander) serverConfig() (replay.Config, error) {
	if c.failFirst < 0 || c.cutAfter < 0 {
		return replay.Config{}, errors.New("--fail-first and --cut-after must not be negative")
	}

	return replay.Config{
		ListenAddr: c.viper.GetString("replay.listen"),
		Dir:        c.viper.GetString("replay.dir"),
		LineDelay:  c.viper.GetDuration("replay.line_delay"),
		FailFirst:  c.failFirst,
		CutAfter:   c.cutAfter,
		Follow:     c.follow,
	}, nil
}

func (c *replayCommander) run(ctx context.Context, errOut io.Writer) error {
	log, closeLog, err := logger.NewWithFile(c.viper.GetString("log.file"),
		logger.WithDebug(c.debug),
		logger.WithJSON(c.viper.GetBool("log.json")),
		logger.WithPretty(c.viper.GetBool("log.pretty") || cliui.IsTerminal(errOut)),
		logger.WithWriter(errOut),
	)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	cfg, err := c.serverConfig()
	if err != nil {
		return err
	}

	var sessions []string
	err = cliui.Step(c.out, fmt.Sprintf("Loading fixtures from %s", cfg.Dir), func() error {
		var err error
		sessions, err = replay.ListFixtures(cfg.Dir)
		return err
	})
	if err != nil {
		return err
	}

	for _, id := range sessions {
		fmt.Fprintf(c.out, "    %s\n", cliui.ValueStyle.Render(id))
	}
	if len(sessions) == 0 {
		fmt.Fprintf(c.out, "    %s\n", cliui.DimStyle.Render("no *.sse fixtures found"))
	}

	srv := replay.NewServer(cfg, c.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("replay server: %w", err)
	case <-ctx.Done():
		c.logger.Info("shutting down replay server")
		return srv.Shutdown()
	}
}

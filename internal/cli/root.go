// Package cli implements the boardctl command line client.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskboard/internal/client"
	"taskboard/internal/engine"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BOARDCTL"

// app carries the per-invocation configuration shared by every command.
type app struct {
	v      *viper.Viper
	logger *log.Logger
}

// NewRootCmd builds the boardctl command tree. Settings come from flags,
// BOARDCTL_* environment variables and an optional config file, in that
// order of precedence.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: log.New()}

	root := &cobra.Command{
		Use:   "boardctl",
		Short: "Work with taskboard boards from the terminal",
		Long: `boardctl talks to a taskboard server. It keeps a local copy of a board,
applies moves immediately and rolls them back if the server refuses them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/boardctl/config.yaml)")
	flags.String("server", "http://localhost:8080", "taskboard server URL")
	flags.String("token", "", "bearer token from 'boardctl login'")
	flags.StringP("board", "b", "", "board id")
	flags.Duration("timeout", engine.DefaultRequestTimeout, "per-request timeout")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"config", "server", "token", "board", "timeout", "log-level"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newBoardsCmd(a),
		newJoinCmd(a),
		newCreateBoardCmd(a),
		newRenameBoardCmd(a),
		newDeleteBoardCmd(a),
		newWatchCmd(a),
		newMoveCmd(a),
		newLimitCmd(a),
		newAddCmd(a),
		newRmCmd(a),
	)
	return root
}

// Execute runs boardctl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) init(stderr io.Writer) error {
	v := a.v
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/boardctl")
		v.AddConfigPath(".")
	}
	v.SetDefault("poll_interval", engine.DefaultPollInterval)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := log.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q", v.GetString("log_level"))
	}
	a.logger.SetLevel(level)
	a.logger.SetOutput(stderr)
	return nil
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString("server"),
		client.WithToken(a.v.GetString("token")),
		client.WithTimeout(a.v.GetDuration("timeout")),
	)
}

func (a *app) boardID() (string, error) {
	id := a.v.GetString("board")
	if id == "" {
		return "", errors.New("no board selected: pass --board or set BOARDCTL_BOARD")
	}
	return id, nil
}

// openBoard starts an engine on the selected board and loads it.
func (a *app) openBoard(cmd *cobra.Command, onChange func(engine.View)) (*engine.Engine, error) {
	boardID, err := a.boardID()
	if err != nil {
		return nil, err
	}
	c := a.client()
	e := engine.New(boardID, c, c, engine.Options{
		Logger:         a.logger,
		RequestTimeout: a.v.GetDuration("timeout"),
		OnChange:       onChange,
	})
	if err := e.Load(cmd.Context()); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func pollInterval(v *viper.Viper) time.Duration {
	if d := v.GetDuration("poll_interval"); d > 0 {
		return d
	}
	return engine.DefaultPollInterval
}

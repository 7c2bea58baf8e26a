package send

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atvremote/go-atvremote/client"
	"github.com/atvremote/go-atvremote/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	timeout    time.Duration
	direction  string

	Cmd = &cobra.Command{
		Use:   "send",
		Short: "Connect, send one command, disconnect",
		Args:  cobra.NoArgs,
	}

	keyCmd = &cobra.Command{
		Use:   "key <keycode>",
		Short: "Inject a key press, e.g. HOME or KEYCODE_DPAD_UP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(func(remote *client.Remote) error {
				return remote.SendKeyCommand(args[0], direction)
			})
		},
	}

	textCmd = &cobra.Command{
		Use:   "text <text>",
		Short: "Type text into the focused input field",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(func(remote *client.Remote) error {
				return remote.SendText(strings.Join(args, " "))
			})
		},
	}

	appCmd = &cobra.Command{
		Use:   "app <link-or-id>",
		Short: "Launch an app by deep link or application id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(func(remote *client.Remote) error {
				return remote.SendLaunchApp(args[0])
			})
		},
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	Cmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "connect timeout")
	keyCmd.Flags().StringVar(&direction, "direction", "", "SHORT, START_LONG or END_LONG")
	Cmd.AddCommand(keyCmd)
	Cmd.AddCommand(textCmd)
	Cmd.AddCommand(appCmd)
}

// withRemote connects, runs fn on the live session and tears down.
func withRemote(fn func(*client.Remote) error) error {
	logger := log.With().Str("com", "send-cmd").Logger()

	cfg, err := config.LoadRemoteConfig(configFile)
	if err != nil {
		return err
	}

	remote, err := client.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer remote.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Debug().Str("host", cfg.Host).Msg("connecting")
	if err := remote.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return fn(remote)
}

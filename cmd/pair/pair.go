package pair

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atvremote/go-atvremote/certs"
	"github.com/atvremote/go-atvremote/client"
	"github.com/atvremote/go-atvremote/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	timeout    time.Duration

	Cmd = &cobra.Command{
		Use:   "pair",
		Short: "Pair with an Android TV device",
		Args:  cobra.NoArgs,
		RunE:  runPair,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	Cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the code")
}

func runPair(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "pair-cmd").Logger()

	cfg, err := config.LoadRemoteConfig(configFile)
	if err != nil {
		return err
	}

	written, err := certs.GenerateIfMissing(cfg.CertFile, cfg.KeyFile, cfg.ClientName)
	if err != nil {
		return err
	}
	if written {
		logger.Info().Str("cert", cfg.CertFile).Msg("generated client certificate")
	}

	remote, err := client.New(cfg, log.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info().Str("host", cfg.Host).Msg("starting pairing")
	if err := remote.StartPairing(ctx); err != nil {
		return fmt.Errorf("start pairing: %w", err)
	}

	fmt.Printf("Enter the code shown on %s: ", cfg.Host)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("read pairing code: %w", scanner.Err())
	}

	if err := remote.FinishPairing(ctx, scanner.Text()); err != nil {
		return fmt.Errorf("finish pairing: %w", err)
	}

	logger.Info().Msg("pairing complete")
	return nil
}

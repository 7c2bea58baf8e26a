package certs

import (
	"fmt"

	"github.com/atvremote/go-atvremote/certs"
	"github.com/atvremote/go-atvremote/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	certFile   string
	keyFile    string
	clientName string

	Cmd = &cobra.Command{
		Use:   "certs",
		Short: "Generate the client certificate presented to the device",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}
)

func init() {
	Cmd.Flags().StringVar(&certFile, "cert", config.DefaultCertFile, "certificate output path")
	Cmd.Flags().StringVar(&keyFile, "key", config.DefaultKeyFile, "key output path")
	Cmd.Flags().StringVar(&clientName, "name", "", "certificate common name, random when empty")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "generate").Logger()

	if clientName == "" {
		clientName = config.GenerateClientName()
	}

	written, err := certs.GenerateIfMissing(certFile, keyFile, clientName)
	if err != nil {
		return fmt.Errorf("generate certificate: %w", err)
	}
	if !written {
		logger.Info().Str("cert", certFile).Msg("certificate already exists, keeping it")
		return nil
	}

	logger.Info().Str("cert", certFile).Str("key", keyFile).Str("name", clientName).Msg("generated")
	return nil
}

// Package run keeps a control session alive and streams device state
// changes as JSON lines on stdout, one object per event.
package run

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/atvremote/go-atvremote/client"
	"github.com/atvremote/go-atvremote/config"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	configFile string

	Cmd = &cobra.Command{
		Use:   "run",
		Short: "Stay connected and stream device state as JSON lines",
		Args:  cobra.NoArgs,
		RunE:  runRemote,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
}

// event is one status line on stdout.
type event struct {
	Event     string             `json:"event"`
	Available *bool              `json:"available,omitempty"`
	IsOn      *bool              `json:"is_on,omitempty"`
	App       string             `json:"app,omitempty"`
	Volume    *client.VolumeInfo `json:"volume,omitempty"`
	Device    *client.DeviceInfo `json:"device,omitempty"`
}

type eventWriter struct {
	mu sync.Mutex
}

func (w *eventWriter) emit(e event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	os.Stdout.Write(append(data, '\n'))
}

func runRemote(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "run-cmd").Logger()

	cfg, err := config.LoadRemoteConfig(configFile)
	if err != nil {
		return err
	}

	remote, err := client.New(cfg, log.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &eventWriter{}
	remote.AddAvailabilityCallback(func(available bool) {
		e := event{Event: "availability", Available: &available}
		if available {
			e.Device = remote.DeviceInfo()
		}
		out.emit(e)
	})
	remote.AddIsOnCallback(func(on bool) {
		out.emit(event{Event: "power", IsOn: &on})
	})
	remote.AddCurrentAppCallback(func(app string) {
		out.emit(event{Event: "current_app", App: app})
	})
	remote.AddVolumeCallback(func(v client.VolumeInfo) {
		out.emit(event{Event: "volume", Volume: &v})
	})
	remote.AddInvalidAuthCallback(func(err error) {
		logger.Error().Err(err).Msg("pairing required, run `atvremote pair`")
		cancel()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Str("host", cfg.Host).Msg("starting remote client")
	remote.KeepReconnecting(ctx)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	remote.Disconnect()
	logger.Info().Msg("client stopped")
	return nil
}

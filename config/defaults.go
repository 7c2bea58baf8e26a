package config

import "github.com/google/uuid"

// Protocol default ports. The control session and the pairing handshake
// run on separate listeners.
const (
	DefaultRemotePort = 6466
	DefaultPairPort   = 6467
)

// Default client identity files.
const (
	DefaultCertFile = "atvremote-cert.pem"
	DefaultKeyFile  = "atvremote-key.pem"
)

// GenerateClientName builds a unique name to show on the TV's pairing
// screen, so several instances can pair with the same device.
func GenerateClientName() string {
	return "atvremote-" + uuid.New().String()[:8]
}

// ApplyDefaults fills zero-valued fields in place.
func (c *Config) ApplyDefaults() {
	if c.RemotePort == 0 {
		c.RemotePort = DefaultRemotePort
	}
	if c.PairPort == 0 {
		c.PairPort = DefaultPairPort
	}
	if c.ClientName == "" {
		c.ClientName = GenerateClientName()
	}
	if c.CertFile == "" {
		c.CertFile = DefaultCertFile
	}
	if c.KeyFile == "" {
		c.KeyFile = DefaultKeyFile
	}
}

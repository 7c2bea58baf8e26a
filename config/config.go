package config

import (
	"fmt"
	"net"
)

const (
	EnvPrefix = "ATVREMOTE_"
)

// Config describes one Android TV target and the client identity used to
// talk to it.
type Config struct {
	// Host is the device address, IP or hostname, without a port.
	Host string `yaml:"host"`

	// RemotePort carries the control session, PairPort the pairing
	// handshake. Zero means the protocol defaults.
	RemotePort int `yaml:"remote_port"`
	PairPort   int `yaml:"pair_port"`

	// ClientName is shown on the TV's pairing screen.
	ClientName string `yaml:"client_name"`

	// CertFile and KeyFile hold the client identity presented during the
	// TLS handshake. The pair is created on first pairing if missing.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// EnableIME advertises text injection support. Some devices report
	// current-app changes only when it is off.
	EnableIME bool `yaml:"enable_ime"`
}

// Validate checks the target address and ports.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if ip := net.ParseIP(c.Host); ip == nil {
		// Not an IP literal; require something resembling a hostname.
		if _, _, err := net.SplitHostPort(c.Host); err == nil {
			return fmt.Errorf("host must not include a port: %s", c.Host)
		}
	}
	for _, port := range []int{c.RemotePort, c.PairPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file must be set")
	}
	return nil
}

// RemoteAddr is the host:port of the control port.
func (c *Config) RemoteAddr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.RemotePort))
}

// PairAddr is the host:port of the pairing port.
func (c *Config) PairAddr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.PairPort))
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oasislabs/protorpc/config"
	"github.com/oasislabs/protorpc/log"
	"github.com/oasislabs/protorpc/metrics"
	"github.com/oasislabs/protorpc/transport"
)

// Config is the process configuration for msgrelay: which side of a
// ping conversation to run, which transport to carry it over, and the
// usual ambient logging/metrics settings.
type Config struct {
	Mode      string
	Transport transport.Config
	Logging   log.Config
	Metrics   metrics.MetricsConfig
}

// Use implementation of config.Config.
func (Config) Use() string {
	return "msgrelay"
}

// EnvPrefix implementation of config.Config.
func (Config) EnvPrefix() string {
	return "MSGRELAY"
}

// Binders implementation of config.Config.
func (c *Config) Binders() []config.Binder {
	return []config.Binder{&c.Transport, &c.Logging, &c.Metrics, (*modeBinder)(c)}
}

// modeBinder binds Config.Mode. It is a distinct named type over
// *Config, rather than a field on Config, purely so Config.Binders can
// list it alongside Transport/Logging without Config implementing
// config.Binder itself (Config is a plain aggregate, not a binder).
type modeBinder Config

func (b *modeBinder) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("mode", "receiver",
		"which side of the conversation to run: sender or receiver")
	return nil
}

func (b *modeBinder) Configure(v *viper.Viper) error {
	b.Mode = v.GetString("mode")
	if b.Mode != "sender" && b.Mode != "receiver" {
		return config.ErrInvalidValue{
			Key:          "mode",
			InvalidValue: b.Mode,
			Values:       []string{"sender", "receiver"},
		}
	}
	return nil
}

// Package transport holds the provider-selection config shared by the
// demo transports (transport/mem, transport/redis): a cobra+viper
// Binder choosing which concrete transport a process should start,
// grounded on the teacher's mailbox provider-selection config.
package transport

import (
	"github.com/oasislabs/protorpc/config"
	"github.com/oasislabs/protorpc/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Provider names a concrete transport implementation.
type Provider string

const (
	ProviderMem   Provider = "mem"
	ProviderRedis Provider = "redis"
)

func (p Provider) String() string {
	return string(p)
}

// Config selects and configures one transport provider.
type Config struct {
	Provider    Provider
	RedisConfig RedisConfig
}

// RedisConfig configures the redis-backed transport.
type RedisConfig struct {
	Addr string
}

// Log implementation of log.Loggable.
func (c *Config) Log(fields log.Fields) {
	fields.Add("transport.provider", c.Provider)
	if c.Provider == ProviderRedis {
		fields.Add("transport.redis.addr", c.RedisConfig.Addr)
	}
}

// Bind implementation of config.Binder.
func (c *Config) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("transport.provider", string(ProviderMem),
		"transport used to exchange frames between sender and receiver. "+
			"Options are "+string(ProviderMem)+", "+string(ProviderRedis)+".")
	cmd.PersistentFlags().String("transport.redis.addr", "127.0.0.1:6379",
		"address of the redis instance backing the redis transport")

	return nil
}

// Configure implementation of config.Binder.
func (c *Config) Configure(v *viper.Viper) error {
	c.Provider = Provider(v.GetString("transport.provider"))
	if len(c.Provider) == 0 {
		return config.ErrKeyNotSet{Key: "transport.provider"}
	}

	switch c.Provider {
	case ProviderMem:
		return nil
	case ProviderRedis:
		c.RedisConfig.Addr = v.GetString("transport.redis.addr")
		if len(c.RedisConfig.Addr) == 0 {
			return config.ErrKeyNotSet{Key: "transport.redis.addr"}
		}
		return nil
	default:
		return config.ErrInvalidValue{
			Key:          "transport.provider",
			InvalidValue: c.Provider.String(),
			Values:       []string{ProviderMem.String(), ProviderRedis.String()},
		}
	}
}

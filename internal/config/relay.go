package config

import (
	"context"
	"flag"
	"io"

	"github.com/sethvargo/go-envconfig"

	"github.com/dmitrijs2005/moments/internal/flagx"
	"github.com/dmitrijs2005/moments/internal/logging"
)

// RelayEnvPrefix prefixes every relay environment variable.
const RelayEnvPrefix = "MOMENTS_RELAY_"

// Relay configures cmd/relay.
type Relay struct {
	ListenAddr string `json:"listen_addr" env:"LISTEN_ADDR"`
	QueueSize  int    `json:"queue_size" env:"QUEUE_SIZE"`
	LogFormat  string `json:"log_format" env:"LOG_FORMAT"`
}

func (c *Relay) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:50061"
	c.QueueSize = 256
	c.LogFormat = logging.FormatJSON
}

func (c *Relay) overlay(src Relay) {
	set(&c.ListenAddr, src.ListenAddr)
	set(&c.QueueSize, src.QueueSize)
	set(&c.LogFormat, src.LogFormat)
}

// parseFlags applies -a listen address, -q queue size and -l log format.
func (c *Relay) parseFlags(args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.ListenAddr, "a", c.ListenAddr, "listen address")
	fs.IntVar(&c.QueueSize, "q", c.QueueSize, "per-subscriber event queue size")
	fs.StringVar(&c.LogFormat, "l", c.LogFormat, "log format (json|console)")

	return fs.Parse(flagx.FilterArgs(args, []string{"-a", "-q", "-l"}))
}

// LoadRelay builds the relay config the same way LoadDaemon does.
func LoadRelay(ctx context.Context, args []string, lookuper envconfig.Lookuper) (*Relay, error) {
	cfg := &Relay{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFile(args); path != "" {
		var j Relay
		if err := readJSON(path, &j); err != nil {
			return nil, err
		}
		cfg.overlay(j)
	}

	var env Relay
	if err := processEnv(ctx, RelayEnvPrefix, lookuper, &env); err != nil {
		return nil, err
	}
	cfg.overlay(env)

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

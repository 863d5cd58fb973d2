// Package config loads settings for the moments daemon and the relay.
//
// Values are layered: built-in defaults, then an optional JSON file named by
// -c/-config, then MOMENTS_* environment variables, then command-line flags.
// Later layers override earlier ones only for the values they set.
package config

import (
	"context"
	"flag"
	"io"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/flagx"
	"github.com/dmitrijs2005/moments/internal/logging"
)

// EnvPrefix prefixes every daemon environment variable.
const EnvPrefix = "MOMENTS_"

// S3 holds attachment storage settings. Attachments are disabled while
// Bucket is empty.
type S3 struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	PresignTTL   time.Duration
}

// Daemon configures cmd/momentsd.
type Daemon struct {
	StorageRoot string
	RelayAddr   string
	UserID      string
	PageSize    int
	LogFormat   string
	DialTimeout time.Duration
	S3          S3
}

func (c *Daemon) LoadDefaults() {
	c.StorageRoot = "data"
	c.RelayAddr = "127.0.0.1:50061"
	c.PageSize = common.DefaultPageSize
	c.LogFormat = logging.FormatJSON
	c.DialTimeout = 5 * time.Second
	c.S3.Region = "us-east-1"
	c.S3.PresignTTL = 15 * time.Minute
}

type daemonJSON struct {
	StorageRoot    string   `json:"storage_root"`
	RelayAddr      string   `json:"relay_addr"`
	UserID         string   `json:"user_id"`
	PageSize       int      `json:"page_size"`
	LogFormat      string   `json:"log_format"`
	DialTimeout    Duration `json:"dial_timeout"`
	S3Bucket       string   `json:"s3_bucket"`
	S3Region       string   `json:"s3_region"`
	S3BaseEndpoint string   `json:"s3_base_endpoint"`
	S3AccessKey    string   `json:"s3_access_key"`
	S3SecretKey    string   `json:"s3_secret_key"`
	PresignTTL     Duration `json:"presign_ttl"`
}

type daemonEnv struct {
	StorageRoot    string        `env:"STORAGE_ROOT"`
	RelayAddr      string        `env:"RELAY_ADDR"`
	UserID         string        `env:"USER_ID"`
	PageSize       int           `env:"PAGE_SIZE"`
	LogFormat      string        `env:"LOG_FORMAT"`
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT"`
	S3Bucket       string        `env:"S3_BUCKET"`
	S3Region       string        `env:"S3_REGION"`
	S3BaseEndpoint string        `env:"S3_BASE_ENDPOINT"`
	S3AccessKey    string        `env:"S3_ACCESS_KEY"`
	S3SecretKey    string        `env:"S3_SECRET_KEY"`
	PresignTTL     time.Duration `env:"PRESIGN_TTL"`
}

// overlay copies every non-zero field of src onto the config.
func (c *Daemon) overlay(src daemonEnv) {
	set(&c.StorageRoot, src.StorageRoot)
	set(&c.RelayAddr, src.RelayAddr)
	set(&c.UserID, src.UserID)
	set(&c.PageSize, src.PageSize)
	set(&c.LogFormat, src.LogFormat)
	set(&c.DialTimeout, src.DialTimeout)
	set(&c.S3.Bucket, src.S3Bucket)
	set(&c.S3.Region, src.S3Region)
	set(&c.S3.BaseEndpoint, src.S3BaseEndpoint)
	set(&c.S3.AccessKey, src.S3AccessKey)
	set(&c.S3.SecretKey, src.S3SecretKey)
	set(&c.S3.PresignTTL, src.PresignTTL)
}

func (j daemonJSON) env() daemonEnv {
	return daemonEnv{
		StorageRoot:    j.StorageRoot,
		RelayAddr:      j.RelayAddr,
		UserID:         j.UserID,
		PageSize:       j.PageSize,
		LogFormat:      j.LogFormat,
		DialTimeout:    j.DialTimeout.Duration,
		S3Bucket:       j.S3Bucket,
		S3Region:       j.S3Region,
		S3BaseEndpoint: j.S3BaseEndpoint,
		S3AccessKey:    j.S3AccessKey,
		S3SecretKey:    j.S3SecretKey,
		PresignTTL:     j.PresignTTL.Duration,
	}
}

var daemonFlags = []string{"-d", "-a", "-u", "-n", "-l", "-t", "-b", "-g", "-e", "-k", "-s"}

// parseFlags applies the daemon flags:
//
//	-d storage root     -a relay address    -u local user id
//	-n page size        -l log format       -t dial timeout
//	-b S3 bucket        -g S3 region        -e S3 endpoint
//	-k S3 access key    -s S3 secret key
func (c *Daemon) parseFlags(args []string) error {
	fs := flag.NewFlagSet("momentsd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.StorageRoot, "d", c.StorageRoot, "storage root directory")
	fs.StringVar(&c.RelayAddr, "a", c.RelayAddr, "relay address")
	fs.StringVar(&c.UserID, "u", c.UserID, "local user id")
	fs.IntVar(&c.PageSize, "n", c.PageSize, "page size")
	fs.StringVar(&c.LogFormat, "l", c.LogFormat, "log format (json|console)")
	fs.DurationVar(&c.DialTimeout, "t", c.DialTimeout, "relay dial timeout")
	fs.StringVar(&c.S3.Bucket, "b", c.S3.Bucket, "S3 bucket")
	fs.StringVar(&c.S3.Region, "g", c.S3.Region, "S3 region")
	fs.StringVar(&c.S3.BaseEndpoint, "e", c.S3.BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&c.S3.AccessKey, "k", c.S3.AccessKey, "S3 access key")
	fs.StringVar(&c.S3.SecretKey, "s", c.S3.SecretKey, "S3 secret key")

	return fs.Parse(flagx.FilterArgs(args, daemonFlags))
}

// LoadDaemon builds the daemon config from args (without the program name)
// and the environment seen through lookuper. A nil lookuper reads the
// process environment.
func LoadDaemon(ctx context.Context, args []string, lookuper envconfig.Lookuper) (*Daemon, error) {
	cfg := &Daemon{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFile(args); path != "" {
		var j daemonJSON
		if err := readJSON(path, &j); err != nil {
			return nil, err
		}
		cfg.overlay(j.env())
	}

	var env daemonEnv
	if err := processEnv(ctx, EnvPrefix, lookuper, &env); err != nil {
		return nil, err
	}
	cfg.overlay(env)

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

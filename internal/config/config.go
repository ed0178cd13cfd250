// Package config parses ScriptInk's environment and command-line settings.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Config holds the application settings. Flags override the environment.
type Config struct {
	Addr            string        `env:"SCRIPTINK_ADDR" envDefault:":8888"`
	DB              string        `env:"SCRIPTINK_DB" envDefault:"scriptink.db"`
	Store           string        `env:"SCRIPTINK_STORE" envDefault:"sqlite"`
	DataDir         string        `env:"SCRIPTINK_DATA_DIR" envDefault:"annotations"`
	Page            string        `env:"SCRIPTINK_PAGE" envDefault:"page-1"`
	Background      string        `env:"SCRIPTINK_BACKGROUND"`
	WheelZoom       bool          `env:"SCRIPTINK_WHEEL_ZOOM" envDefault:"false"`
	Advertise       bool          `env:"SCRIPTINK_ADVERTISE" envDefault:"true"`
	DiscoverTimeout time.Duration `env:"SCRIPTINK_DISCOVER_TIMEOUT" envDefault:"3s"`

	// Connect is a host address or share link; set, the app runs as a peer.
	Connect  string
	Discover bool
	List     bool

	ExportPDF string
	ExportPNG string
}

// ParseConfig loads environment defaults and then parses flags. A share
// link given as the first positional argument is taken as -connect.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address the host serves peers on")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "SQLite database path")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Annotation store: sqlite, file or memory")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory of the file store")
	fs.StringVar(&cfg.Page, "page", cfg.Page, "Page to annotate")
	fs.StringVar(&cfg.Background, "background", cfg.Background, "Page image shown under the ink")
	fs.BoolVar(&cfg.WheelZoom, "wheel-zoom", cfg.WheelZoom, "Zoom with the plain wheel instead of panning")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Announce the host on the LAN over mDNS")
	fs.DurationVar(&cfg.DiscoverTimeout, "discover-timeout", cfg.DiscoverTimeout, "How long -discover listens for hosts")
	fs.StringVar(&cfg.Connect, "connect", "", "Host address or scriptink:// link to join")
	fs.BoolVar(&cfg.Discover, "discover", false, "Join the first host found on the LAN")
	fs.BoolVar(&cfg.List, "list", false, "List stored pages and exit")
	fs.StringVar(&cfg.ExportPDF, "export-pdf", "", "Write the page to a PDF file and exit")
	fs.StringVar(&cfg.ExportPNG, "export-png", "", "Write the page ink to a PNG file and exit")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Connect == "" && fs.NArg() > 0 {
		cfg.Connect = fs.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values flags and the environment cannot constrain.
func (c *Config) Validate() error {
	c.Page = strings.TrimSpace(c.Page)
	if c.Page == "" {
		return errors.New("page is required")
	}
	switch c.Store {
	case StoreSQLite:
		if strings.TrimSpace(c.DB) == "" {
			return errors.New("sqlite store needs -db")
		}
	case StoreFile:
		if strings.TrimSpace(c.DataDir) == "" {
			return errors.New("file store needs -data-dir")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Connect != "" && c.Discover {
		return errors.New("-connect and -discover are exclusive")
	}
	if c.DiscoverTimeout <= 0 {
		return errors.New("discover timeout must be positive")
	}
	return nil
}

// Peer reports whether the app joins a remote host instead of hosting.
func (c Config) Peer() bool { return c.Connect != "" || c.Discover }

// Headless reports whether the run only exports or lists and exits.
func (c Config) Headless() bool { return c.ExportPDF != "" || c.ExportPNG != "" || c.List }

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

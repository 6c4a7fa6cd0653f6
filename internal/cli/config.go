package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/galadrinks/storefront/internal/domain/checkout"
	"github.com/galadrinks/storefront/internal/storage/kv"
)

// Config is the client configuration, loadable from environment variables
// (STOREFRONT_ prefix) or YAML config files. Flags belong to cobra.
type Config struct {
	APIURL   string        `default:"http://localhost:8080" env:"API_URL" yaml:"api_url" usage:"Storefront API base URL"`
	Timeout  time.Duration `default:"30s" usage:"Timeout for each API request"`
	DeviceID string        `env:"DEVICE_ID" yaml:"device_id" usage:"Device identifier namespacing shared stores; defaults to the hostname"`
	Store    kv.Config
	Checkout CheckoutConfig
}

// CheckoutConfig controls how orders are written.
type CheckoutConfig struct {
	Mode       string `default:"atomic" usage:"atomic or two-step"`
	Compensate bool   `default:"true" usage:"Delete the order header when a two-step item insert fails"`
}

// defaultConfigFiles are searched in order when no --config is given.
func defaultConfigFiles() []string {
	files := []string{"storefront.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "storefront", "config.yaml"))
	}
	return files
}

// LoadConfig loads the configuration. An explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	files := defaultConfigFiles()
	if path != "" {
		files = []string{path}
	}
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		EnvPrefix:          "STOREFRONT",
		Files:              files,
		FailOnFileNotFound: path != "",
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills settings that depend on the machine.
func (c *Config) applyDefaults() error {
	if _, err := checkout.ParseMode(c.Checkout.Mode); err != nil {
		return err
	}
	if c.DeviceID == "" {
		host, err := os.Hostname()
		if err != nil {
			return errors.Wrap(err, "device id")
		}
		c.DeviceID = host
	}
	if c.Store.Path == "" && (c.Store.Driver == kv.DriverFile || c.Store.Driver == kv.DriverSQLite || c.Store.Driver == "") {
		dir, err := os.UserConfigDir()
		if err != nil {
			return errors.Wrap(err, "store path")
		}
		name := "state.json"
		if c.Store.Driver == kv.DriverSQLite {
			name = "state.db"
		}
		c.Store.Path = filepath.Join(dir, "storefront", name)
	}
	return nil
}

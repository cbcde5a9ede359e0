package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/api"
	"github.com/pfrederiksen/saic-ls/internal/coordinator"
	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/mqtt"
	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// EnvPrefix prefixes environment overrides, e.g. SAIC_ACCOUNT_USERNAME.
const EnvPrefix = "SAIC"

// Config holds all configuration options for saic-ls
type Config struct {
	Account      AccountConfig      `mapstructure:"account"`
	Capabilities model.Capabilities `mapstructure:"capabilities"`

	// Intervals overrides coordinator options by option name, e.g.
	// update_interval: 30 (minutes) or ac_long_interval: 10m.
	Intervals map[string]any `mapstructure:"intervals"`

	Storage StorageConfig `mapstructure:"storage"`
	MQTT    mqtt.Config   `mapstructure:"mqtt"`
	API     api.Config    `mapstructure:"api"`
	Log     log.Options   `mapstructure:"log"`
}

// AccountConfig selects the account and vehicle.
type AccountConfig struct {
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"` // Usually left empty, prompt is preferred
	Region      string `mapstructure:"region"`
	BaseURL     string `mapstructure:"base_url"`
	CountryCode string `mapstructure:"country_code"`

	// VIN may be empty when the account has a single vehicle.
	VIN string `mapstructure:"vin"`

	// VehicleType overrides the type derived from the vehicle series
	// (BEV, PHEV, HEV or ICE).
	VehicleType string `mapstructure:"vehicle_type"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	SessionDir string `mapstructure:"session_dir"`
	Disable    bool   `mapstructure:"disable"`
}

// Load reads configuration from, in increasing priority: defaults, the config
// file, SAIC_* environment variables and flags in fs whose names contain a
// dot (e.g. --log.level, --account.vin). An empty path searches
// $XDG_CONFIG_HOME/saic-ls/config.yaml and ~/.config/saic-ls/config.yaml; a
// missing file is not an error there.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range configDirs() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var errs error
		fs.VisitAll(func(f *pflag.Flag) {
			if strings.Contains(f.Name, ".") {
				errs = multierr.Append(errs, v.BindPFlag(f.Name, f))
			}
		})
		if errs != nil {
			return nil, fmt.Errorf("bind flags: %w", errs)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	logOpts := log.NewOptions()

	// Every key needs a default so AutomaticEnv can override it.
	v.SetDefault("account.username", "")
	v.SetDefault("account.password", "")
	v.SetDefault("account.region", saic.DefaultRegion)
	v.SetDefault("account.base_url", "")
	v.SetDefault("account.country_code", "")
	v.SetDefault("account.vin", "")
	v.SetDefault("account.vehicle_type", "")
	v.SetDefault("capabilities.has_sunroof", false)
	v.SetDefault("capabilities.has_heated_seats", false)
	v.SetDefault("capabilities.has_battery_heating", false)
	v.SetDefault("storage.db_path", defaultDBPath())
	v.SetDefault("storage.session_dir", defaultDataDir())
	v.SetDefault("storage.disable", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "saic")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.timeout", "10s")
	v.SetDefault("api.listen", "")
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("log.name", "saic-ls")
	v.SetDefault("log.level", logOpts.Level)
	v.SetDefault("log.format", logOpts.Format)
	v.SetDefault("log.enable-color", logOpts.EnableColor)
	v.SetDefault("log.disable-caller", logOpts.DisableCaller)
	v.SetDefault("log.output-paths", logOpts.OutputPaths)
}

// Validate reports every invalid setting. A missing password is not an
// error; the caller prompts for it.
func (c *Config) Validate() error {
	var errs error

	if c.Account.Username == "" {
		errs = multierr.Append(errs, errors.New("account.username is required"))
	}
	if c.Account.BaseURL == "" {
		if _, err := saic.RegionBaseURL(c.Account.Region); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("account.region: %w", err))
		}
	}
	if c.Account.VehicleType != "" {
		if _, ok := model.ParseVehicleType(c.Account.VehicleType); !ok {
			errs = multierr.Append(errs, fmt.Errorf("account.vehicle_type: unknown type %q", c.Account.VehicleType))
		}
	}
	if !c.Storage.Disable && c.Storage.DBPath == "" {
		errs = multierr.Append(errs, errors.New("storage.db_path is required unless storage.disable is set"))
	}
	if c.MQTT.Enabled() && c.MQTT.Timeout <= 0 {
		errs = multierr.Append(errs, errors.New("mqtt.timeout must be positive"))
	}
	if c.API.Username != "" && c.API.Password == "" {
		errs = multierr.Append(errs, errors.New("api.password is required when api.username is set"))
	}
	if _, err := c.CoordinatorOptions(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("intervals: %w", err))
	}
	for _, err := range c.Log.Validate() {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// BaseURL returns the configured gateway URL, falling back to the region.
func (c *Config) BaseURL() (string, error) {
	if c.Account.BaseURL != "" {
		return c.Account.BaseURL, nil
	}
	return saic.RegionBaseURL(c.Account.Region)
}

// VehicleType returns the configured type override, if any.
func (c *Config) VehicleType() (model.VehicleType, bool) {
	if c.Account.VehicleType == "" {
		return "", false
	}
	return model.ParseVehicleType(c.Account.VehicleType)
}

// CoordinatorOptions returns the defaults with the configured capabilities
// and interval overrides applied.
func (c *Config) CoordinatorOptions() (coordinator.Options, error) {
	opts := coordinator.DefaultOptions()
	opts.Capabilities = c.Capabilities
	if len(c.Intervals) == 0 {
		return opts, nil
	}
	return opts.Apply(c.Intervals)
}

// configDirs returns the directories searched for config.yaml
func configDirs() []string {
	var dirs []string
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "saic-ls"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "saic-ls"))
	}
	return dirs
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "saic-ls")
}

// defaultDBPath returns the default database path
func defaultDBPath() string {
	return filepath.Join(defaultDataDir(), "state.db")
}

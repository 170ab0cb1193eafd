package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// AppName is used for the app data folder and the user agent
const AppName = "oblauncher"

// DefaultCatalogFile is looked up next to the executable when
// neither a catalog file nor a catalog URL is configured.
const DefaultCatalogFile = "games.json"

type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Path to the settings database. Defaults to `settings.db` in the app data folder.
	StorePath string `mapstructure:"store_path"`

	// Where archives are downloaded before extraction. Defaults to the OS temp folder.
	TempDir string `mapstructure:"temp_dir"`
}

// CatalogConfig picks where the game catalog comes from.
// Setting both is an error, setting neither means a `games.json` next to the executable.
type CatalogConfig struct {
	URL  string `mapstructure:"url"`
	File string `mapstructure:"file"`
}

// Path returns the default location of the config file
func Path() (string, error) {
	appData, err := GetAppDataPath(AppName)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return filepath.Join(appData, "launcher.toml"), nil
}

// Default returns a configuration with every default filled in
func Default() (*Config, error) {
	c := &Config{}
	err := c.fillDefaults()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a launcher config from a TOML file. A missing file
// is not an error unless mustExist is set: defaults are returned instead.
// Invalid TOML markup or an invalid config structure are errors.
func Load(path string, mustExist bool) (*Config, error) {
	c := &Config{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			err = c.fillDefaults()
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	intermediate := make(map[string]interface{})
	_, err = toml.DecodeReader(f, &intermediate)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      c,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = decoder.Decode(intermediate)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}

	if c.Catalog.URL != "" && c.Catalog.File != "" {
		return nil, errors.Errorf("invalid config file %s: catalog.url and catalog.file are mutually exclusive", path)
	}

	err = c.fillDefaults()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) fillDefaults() error {
	if c.StorePath == "" {
		appData, err := GetAppDataPath(AppName)
		if err != nil {
			return errors.WithStack(err)
		}
		c.StorePath = filepath.Join(appData, "settings.db")
	}

	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}

	if c.Catalog.URL == "" && c.Catalog.File == "" {
		c.Catalog.File = DefaultCatalogFile
		if exe, err := os.Executable(); err == nil {
			c.Catalog.File = filepath.Join(filepath.Dir(exe), DefaultCatalogFile)
		}
	}

	return nil
}

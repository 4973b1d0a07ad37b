package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Load reads options from a YAML, JSON or TOML file over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if err := c.LoadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile applies the options found in a configuration file. The format is
// chosen from the file extension.
func (c *Config) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var err error
	for _, key := range v.AllKeys() {
		o, ok := byName[key]
		if !ok {
			err = multierr.Append(err, &Error{Option: key, Err: ErrInvalidOption, Detail: "unknown option"})
			continue
		}
		err = multierr.Append(err, c.Set(key, typed(v, o)))
	}
	return err
}

func typed(v *viper.Viper, o *Option) any {
	switch o.Kind {
	case KindInt:
		return v.GetInt(o.Name)
	case KindFloat:
		return v.GetFloat64(o.Name)
	case KindBool:
		return v.GetBool(o.Name)
	}
	return v.GetString(o.Name)
}

// ApplyEnv applies options from environment variables named
// PREFIX_OPTION, e.g. SPHINX_SAMPRATE for prefix "SPHINX".
func (c *Config) ApplyEnv(prefix string) error {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	var err error
	for _, o := range registry {
		if bindErr := v.BindEnv(o.Name); bindErr != nil {
			err = multierr.Append(err, bindErr)
			continue
		}
		if !v.IsSet(o.Name) {
			continue
		}
		err = multierr.Append(err, c.Parse(o.Name, v.GetString(o.Name)))
	}
	return err
}

// WriteYAML writes every option with its current value.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.values); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

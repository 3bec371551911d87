// Copyright 2014 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cayleygraph/plaza/js3"
)

const (
	KeyTimeout = "remote.timeout"
	KeySuffix  = "remote.suffix"
	KeySchemas = "schema.sources"
	KeySpaces  = "spaces"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. PLAZA_REMOTE_TIMEOUT.
const EnvPrefix = "PLAZA"

const DefaultTimeout = 30 * time.Second

// Space is a space connected on startup.
type Space struct {
	Name       string `mapstructure:"name"`
	Single     string `mapstructure:"single"`
	Collection string `mapstructure:"collection"`
}

// Config defines how a plaza context reaches the remote store.
type Config struct {
	// Timeout bounds every remote call. Zero disables it.
	Timeout time.Duration
	// Suffix is appended to every expanded service address.
	Suffix  string
	Schemas []string
	Spaces  []Space
}

// SetDefaults registers default values and environment lookup on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeySuffix, js3.Ext)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile merges a config file into v. Any format known to viper is
// accepted (JSON, YAML, TOML, ...).
func ReadFile(v *viper.Viper, file string) error {
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("could not read config file %q: %v", file, err)
	}
	return nil
}

// FromViper builds a config from the values of v.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Timeout: v.GetDuration(KeyTimeout),
		Suffix:  v.GetString(KeySuffix),
		Schemas: v.GetStringSlice(KeySchemas),
	}
	if err := v.UnmarshalKey(KeySpaces, &c.Spaces); err != nil {
		return nil, fmt.Errorf("could not parse %s: %v", KeySpaces, err)
	}
	for i, s := range c.Spaces {
		if s.Name == "" {
			return nil, fmt.Errorf("%s[%d]: space has no name", KeySpaces, i)
		}
		if s.Single == "" && s.Collection == "" {
			return nil, fmt.Errorf("%s[%d]: space %q has no endpoint", KeySpaces, i, s.Name)
		}
	}
	return c, nil
}

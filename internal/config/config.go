// Package config loads docref.Config from defaults, a YAML file, DOCREF_*
// environment variables and bound command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jward/docref"
)

// EnvPrefix prefixes every environment variable viper consults.
const EnvPrefix = "DOCREF"

// Production is the DOCREF_ENV value that turns strict mode on unless
// strict is set explicitly.
const Production = "production"

// SetDefaults seeds v with docref.DefaultConfig. strict is left unset so
// its default can follow the build environment.
func SetDefaults(v *viper.Viper) {
	d := docref.DefaultConfig()
	v.SetDefault("env", "development")
	v.SetDefault("content_root", d.ContentRoot)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("repo_base_url", d.RepoBaseURL)
	v.SetDefault("default_branch", d.DefaultBranch)
	v.SetDefault("missing_identifier", string(d.MissingIdentifier))
	v.SetDefault("bare_repo_links", d.BareRepoLinks)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("hook_script", d.HookScript)
	v.SetDefault("workers", d.Workers)
}

// Load reads configuration into a docref.Config. With an empty cfgFile it
// looks for docref.yaml in the working directory and in .docref/, and a
// missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (docref.Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("docref")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".docref")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return docref.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg docref.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return docref.Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Strict = strings.EqualFold(v.GetString("env"), Production)
	if v.IsSet("strict") {
		cfg.Strict = v.GetBool("strict")
	}

	if err := cfg.Validate(); err != nil {
		return docref.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Package config layers the compiler pipeline's tunables the way a
// production cobra CLI in this ecosystem would: pflag-bound defaults,
// optionally overridden by a config file, read through one viper
// instance (spec.md's ambient stack has no analogous component — the
// teacher reads flags with the stdlib flag package and nothing else —
// so this package is grounded on oisee-z80-optimizer's flat
// flags-into-a-struct style, layered with viper since cobra's natural
// companion for "flags + file" is viper, not hand-rolled os.Getenv
// parsing).
package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Pipeline holds the tunables that control one compilation run: which
// passes execute, whether the lowered function is validated once
// before emission, and where output goes.
type Pipeline struct {
	Target        string `mapstructure:"target"`
	RunClean      bool   `mapstructure:"run-clean"`
	DebugValidate bool   `mapstructure:"debug-validate"`
	EmitListing   bool   `mapstructure:"emit-listing"`
	Output        string `mapstructure:"output"`
}

// Default mirrors the pipeline's out-of-the-box behavior: Clean runs,
// debug validation is off (matching lir.DebugValidate's own
// env-var-gated default), no listing file.
func Default() Pipeline {
	return Pipeline{Target: "x64", RunClean: true, DebugValidate: false, EmitListing: false}
}

// BindFlags registers the pipeline's flags on fs and binds them
// through v, so that a config file loaded into v can supply defaults
// and explicit flags still win, per viper's usual precedence.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("target", "x64", "target triple (only x64 is implemented)")
	fs.Bool("run-clean", true, "run the Clean pass before lowering")
	fs.Bool("debug-validate", false, "validate the lowered function once before emission")
	fs.Bool("emit-listing", false, "also write the emitter's relocation listing")
	fs.String("output", "", "output file path (defaults to <schedule-name>.bin)")
	v.BindPFlags(fs)
}

// LoadConfigFile reads path into v if path is non-empty, returning
// nil if path is empty (a config file is optional — flags and
// defaults alone are a complete configuration).
func LoadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}

// Load unmarshals v's current layered state (defaults, file, flags)
// into a Pipeline.
func Load(v *viper.Viper) (Pipeline, error) {
	p := Default()
	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

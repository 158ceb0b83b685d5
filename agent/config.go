package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Config is the typed form of an agent construction string such as
// "alpha=0.1 load=weights.bin". Keys are case-sensitive. Keys no agent
// understands are kept in Extra and otherwise ignored.
type Config struct {
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`

	// Seed seeds agents with randomness. Nil means seed from the clock.
	Seed *int64 `mapstructure:"seed"`

	// Init requests freshly zeroed weight tables.
	Init *string `mapstructure:"init"`
	// Load and Save are weight file paths; empty means absent.
	Load string `mapstructure:"load"`
	Save string `mapstructure:"save"`
	// Alpha is the learning rate. Zero disables learning.
	Alpha float32 `mapstructure:"alpha"`

	Extra map[string]string `mapstructure:"-"`
}

// SplitArgs tokenises a construction string into key/value pairs.
// A token without '=' maps to itself. Later tokens override earlier ones.
func SplitArgs(args string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(args) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			value = tok
		}
		out[key] = value
	}
	return out
}

// ParseConfig decodes a construction string. Numeric fields are converted
// once here; a value that does not parse is an error.
func ParseConfig(args string) (Config, error) {
	raw := SplitArgs(args)

	var cfg Config
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("build config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("parse agent args %q: %w", args, err)
	}

	if len(md.Unused) > 0 {
		cfg.Extra = make(map[string]string, len(md.Unused))
		for _, key := range md.Unused {
			cfg.Extra[key] = raw[key]
		}
	}
	return cfg, nil
}

// String renders the config back into construction-string form with keys sorted.
func (c Config) String() string {
	kv := map[string]string{"name": c.Name, "role": c.Role}
	if c.Seed != nil {
		kv["seed"] = fmt.Sprint(*c.Seed)
	}
	if c.Init != nil {
		kv["init"] = *c.Init
	}
	if c.Load != "" {
		kv["load"] = c.Load
	}
	if c.Save != "" {
		kv["save"] = c.Save
	}
	if c.Alpha != 0 {
		kv["alpha"] = fmt.Sprint(c.Alpha)
	}
	for k, v := range c.Extra {
		kv[k] = v
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+kv[k])
	}
	return strings.Join(parts, " ")
}

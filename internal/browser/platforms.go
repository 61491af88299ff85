package browser

import (
	_ "embed"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

//go:embed openers.toml
var openersTOML []byte

// Opener is one way of handing a URL to the desktop.
type Opener struct {
	Commands []string `toml:"commands"`
	Args     []string `toml:"args"`
}

type openersConfig struct {
	Platforms map[string]Opener `toml:"platforms"`
}

func loadDefaults() (map[string]Opener, error) {
	var cfg openersConfig
	if err := toml.Unmarshal(openersTOML, &cfg); err != nil {
		return nil, err
	}
	return cfg.Platforms, nil
}

// platformOpener picks the entry for goos, then the fallback entry.
func platformOpener(platforms map[string]Opener, goos string) Opener {
	if o, ok := platforms[goos]; ok {
		return o
	}
	if o, ok := platforms["fallback"]; ok {
		return o
	}
	return Opener{Commands: []string{"open"}}
}

func currentPlatform() string {
	return runtime.GOOS
}

package reconcile

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// MalformedCostFileError reports a cost-override file that could not be
// parsed or validated. It is surfaced before any tree processing begins.
type MalformedCostFileError struct {
	Path string
	Err  error
}

func (e *MalformedCostFileError) Error() string {
	return fmt.Sprintf("reconcile: malformed cost file %s: %v", e.Path, e.Err)
}

func (e *MalformedCostFileError) Unwrap() error { return e.Err }

// costFile mirrors the TOML layout of a cost-override file:
//
//	dup      = 1.0
//	loss     = 1.0
//	internal = "mean"   # or "default"
//
//	[species.HUMAN]
//	dup  = 1.2
//	loss = 0.8
type costFile struct {
	Dup      *float64               `toml:"dup"`
	Loss     *float64               `toml:"loss"`
	Internal string                 `toml:"internal"`
	Species  map[string]speciesCost `toml:"species"`
}

type speciesCost struct {
	Dup  *float64 `toml:"dup"`
	Loss *float64 `toml:"loss"`
}

// LoadConfig reads a TOML cost-override file and merges it over
// DefaultConfig. Any parse failure, unknown key, negative weight, or unknown
// internal policy yields a *MalformedCostFileError.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var f costFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return Config{}, &MalformedCostFileError{Path: path, Err: err}
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return Config{}, &MalformedCostFileError{
			Path: path,
			Err:  fmt.Errorf("unknown key %q", undec[0].String()),
		}
	}

	if f.Dup != nil {
		cfg.DupWeight = *f.Dup
	}
	if f.Loss != nil {
		cfg.LossWeight = *f.Loss
	}
	switch f.Internal {
	case "", "default":
		cfg.Internal = WeightDefault
	case "mean":
		cfg.Internal = WeightMean
	default:
		return Config{}, &MalformedCostFileError{
			Path: path,
			Err:  fmt.Errorf("unknown internal policy %q", f.Internal),
		}
	}

	for name, sc := range f.Species {
		if sc.Dup != nil {
			if cfg.SpeciesDup == nil {
				cfg.SpeciesDup = make(map[string]float64)
			}
			cfg.SpeciesDup[name] = *sc.Dup
		}
		if sc.Loss != nil {
			if cfg.SpeciesLoss == nil {
				cfg.SpeciesLoss = make(map[string]float64)
			}
			cfg.SpeciesLoss[name] = *sc.Loss
		}
	}

	if cfg.DupWeight < 0 || cfg.LossWeight < 0 {
		return Config{}, &MalformedCostFileError{Path: path, Err: fmt.Errorf("negative default weight")}
	}
	for name, v := range cfg.SpeciesDup {
		if v < 0 {
			return Config{}, &MalformedCostFileError{Path: path, Err: fmt.Errorf("negative dup weight for %s", name)}
		}
	}
	for name, v := range cfg.SpeciesLoss {
		if v < 0 {
			return Config{}, &MalformedCostFileError{Path: path, Err: fmt.Errorf("negative loss weight for %s", name)}
		}
	}
	return cfg, nil
}

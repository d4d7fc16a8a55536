package octree

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// BuildConfig holds the knobs of an octree build.
type BuildConfig struct {
	// Depth is the finest subdivision level.
	Depth int `yaml:"depth"`
	// FullLayer is the deepest layer at which every cell is enumerated
	// regardless of occupancy.
	FullLayer int `yaml:"full_layer"`
	// Adaptive enables trimming of well-approximated subtrees.
	Adaptive bool `yaml:"adaptive"`
	// AdaptiveLayer is the shallowest layer the trim pass may collapse.
	AdaptiveLayer int `yaml:"adaptive_layer"`
	// ThresholdDistance is the max point-to-plane error for a trimmed node.
	ThresholdDistance float32 `yaml:"th_distance"`
	// ThresholdNormal is the max normal deviation error for a trimmed node.
	ThresholdNormal float32 `yaml:"th_normal"`
	// Displace records per-node offsets along the averaged normal.
	Displace bool `yaml:"displace"`
	// NodeFeature stores averaged signals on every layer instead of only
	// the finest one.
	NodeFeature bool `yaml:"node_feature"`
	// SplitLabel stores the per-node split status.
	SplitLabel bool `yaml:"split_label"`
	// Key2XYZ serializes keys as packed cell coordinates instead of
	// shuffled keys.
	Key2XYZ bool `yaml:"key2xyz"`
}

// DefaultBuildConfig returns the config used when none is given.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Depth:             6,
		FullLayer:         2,
		AdaptiveLayer:     4,
		ThresholdDistance: 2.0,
		ThresholdNormal:   0.1,
	}
}

// Validate returns every problem with the config.
func (cfg BuildConfig) Validate() error {
	var err error
	if cfg.Depth < 1 || cfg.Depth > 8 {
		err = multierr.Append(err, errors.Errorf("depth %d out of range [1, 8]", cfg.Depth))
	}
	if cfg.FullLayer < 0 || cfg.FullLayer > cfg.Depth {
		err = multierr.Append(err, errors.Errorf("full layer %d out of range [0, %d]", cfg.FullLayer, cfg.Depth))
	}
	if cfg.Adaptive {
		fl := cfg.FullLayer
		if fl < 1 {
			fl = 1
		}
		if cfg.AdaptiveLayer < fl || cfg.AdaptiveLayer > cfg.Depth {
			err = multierr.Append(err, errors.Errorf("adaptive layer %d out of range [%d, %d]", cfg.AdaptiveLayer, fl, cfg.Depth))
		}
		if cfg.ThresholdDistance < 0 {
			err = multierr.Append(err, errors.Errorf("distance threshold %g must not be negative", cfg.ThresholdDistance))
		}
		if cfg.ThresholdNormal < 0 || cfg.ThresholdNormal > 1 {
			err = multierr.Append(err, errors.Errorf("normal threshold %g out of range [0, 1]", cfg.ThresholdNormal))
		}
	}
	return err
}

// ReadBuildConfig loads a config from a YAML file, filling unset fields
// from the defaults.
func ReadBuildConfig(fn string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "error parsing config %q", fn)
	}
	return cfg, cfg.Validate()
}

func axisValue(v r3.Vector, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

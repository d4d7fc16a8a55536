package octree

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestBuildConfigValidate(t *testing.T) {
	test.That(t, DefaultBuildConfig().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name string
		cfg  BuildConfig
	}{
		{"depth too small", BuildConfig{Depth: 0}},
		{"depth too large", BuildConfig{Depth: 9}},
		{"full layer beyond depth", BuildConfig{Depth: 3, FullLayer: 4}},
		{"negative full layer", BuildConfig{Depth: 3, FullLayer: -1}},
		{"adaptive layer beyond depth", BuildConfig{
			Depth: 4, FullLayer: 2, Adaptive: true, AdaptiveLayer: 5,
		}},
		{"adaptive layer below full layer", BuildConfig{
			Depth: 4, FullLayer: 3, Adaptive: true, AdaptiveLayer: 2,
		}},
		{"negative distance threshold", BuildConfig{
			Depth: 4, FullLayer: 2, Adaptive: true, AdaptiveLayer: 3,
			ThresholdDistance: -1,
		}},
		{"normal threshold beyond one", BuildConfig{
			Depth: 4, FullLayer: 2, Adaptive: true, AdaptiveLayer: 3,
			ThresholdNormal: 1.5,
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, tc.cfg.Validate(), test.ShouldNotBeNil)
		})
	}

	// the thresholds are not checked unless adaptive trimming is on
	cfg := BuildConfig{Depth: 4, FullLayer: 2, ThresholdDistance: -1}
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestReadBuildConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "build.yaml")
	yml := `
depth: 5
adaptive: true
adaptive_layer: 3
th_normal: 0.2
split_label: true
`
	test.That(t, os.WriteFile(fn, []byte(yml), 0o600), test.ShouldBeNil)

	cfg, err := ReadBuildConfig(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Depth, test.ShouldEqual, 5)
	test.That(t, cfg.Adaptive, test.ShouldBeTrue)
	test.That(t, cfg.AdaptiveLayer, test.ShouldEqual, 3)
	test.That(t, cfg.ThresholdNormal, test.ShouldEqual, float32(0.2))
	test.That(t, cfg.SplitLabel, test.ShouldBeTrue)

	// unset fields keep their defaults
	test.That(t, cfg.FullLayer, test.ShouldEqual, 2)
	test.That(t, cfg.ThresholdDistance, test.ShouldEqual, float32(2.0))
}

func TestReadBuildConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadBuildConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "bad.yaml")
		test.That(t, os.WriteFile(fn, []byte("depth: [oops"), 0o600), test.ShouldBeNil)
		_, err := ReadBuildConfig(fn)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("invalid values", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "invalid.yaml")
		test.That(t, os.WriteFile(fn, []byte("depth: 12"), 0o600), test.ShouldBeNil)
		_, err := ReadBuildConfig(fn)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

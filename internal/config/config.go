// Package config holds the detection configuration shared by every pipeline
// stage. Historical tunings that used to live in separate processor variants
// are expressed as named presets over one DetectionConfig.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Method names used as keys in MethodWeights. They must match the Name()
// of the corresponding intensity method.
const (
	MethodDarkness      = "darkness"
	MethodMorphological = "morphological"
	MethodContour       = "contour"
	MethodTemplate      = "template"
	MethodStatistical   = "statistical"
)

// VoteThresholds are the tiered intensity levels used by the consensus
// resolver. Crossing a higher tier earns more votes for an option.
type VoteThresholds struct {
	Low  float64 `yaml:"low"`
	Med  float64 `yaml:"med"`
	High float64 `yaml:"high"`
}

// DetectionConfig holds every tunable of the grading pipeline.
// All threshold values here are calibration defaults, not ground truth;
// scans from a different camera or printer usually need a preset of their own.
type DetectionConfig struct {
	// Candidate extraction
	MinBubbleArea        float64 `yaml:"min_bubble_area"`
	MaxBubbleArea        float64 `yaml:"max_bubble_area"`
	AspectRatioTolerance float64 `yaml:"aspect_ratio_tolerance"`
	CircularityThreshold float64 `yaml:"circularity_threshold"`
	SolidityThreshold    float64 `yaml:"solidity_threshold"`
	BinarizationAdaptive bool    `yaml:"binarization_adaptive"`

	// Row/column clustering
	RowTolerance     float64 `yaml:"row_tolerance"`
	MinBubblesPerRow int     `yaml:"min_bubbles_per_row"`
	MaxBubblesPerRow int     `yaml:"max_bubbles_per_row"`

	// Layout
	MinRowsForLayout int `yaml:"min_rows_for_layout"`

	// Mapping and recovery
	ExpectedOptionsPerQuestion int     `yaml:"expected_options_per_question"`
	RecoveryMinRatio           float64 `yaml:"recovery_min_ratio"`

	// Intensity analysis
	BubbleRadius int `yaml:"bubble_radius"`

	// Consensus
	DetectionThreshold   float64            `yaml:"detection_threshold"`
	PerSectionThresholds map[int]float64    `yaml:"per_section_thresholds,omitempty"`
	MethodWeights        map[string]float64 `yaml:"method_weights"`
	Votes                VoteThresholds     `yaml:"votes"`

	// Concurrency: worker count for per-question analysis and batch mode.
	// Zero means runtime.NumCPU.
	Workers int `yaml:"workers"`
}

// Default returns the baseline configuration, tuned for 200-300 DPI phone
// photos of A4 answer sheets.
func Default() DetectionConfig {
	return DetectionConfig{
		MinBubbleArea:        120,
		MaxBubbleArea:        2600,
		AspectRatioTolerance: 0.35,
		CircularityThreshold: 0.60,
		SolidityThreshold:    0.85,
		BinarizationAdaptive: true,

		RowTolerance:     12,
		MinBubblesPerRow: 3,
		MaxBubblesPerRow: 20,

		MinRowsForLayout: 5,

		ExpectedOptionsPerQuestion: 5,
		RecoveryMinRatio:           0.85,

		BubbleRadius: 12,

		DetectionThreshold: 0.40,
		MethodWeights: map[string]float64{
			MethodDarkness:      0.30,
			MethodMorphological: 0.20,
			MethodContour:       0.20,
			MethodTemplate:      0.15,
			MethodStatistical:   0.15,
		},
		Votes: VoteThresholds{Low: 0.30, Med: 0.50, High: 0.70},
	}
}

// Preset returns a named configuration. The names correspond to the
// historical detector tunings that predate the unified pipeline.
func Preset(name string) (DetectionConfig, error) {
	cfg := Default()
	switch name {
	case "", "default":
		return cfg, nil
	case "strict":
		// Fewer false positives: only unambiguously dark marks count.
		cfg.DetectionThreshold = 0.45
		cfg.CircularityThreshold = 0.70
		cfg.SolidityThreshold = 0.90
		return cfg, nil
	case "lenient":
		// Faint pencil marks on low-contrast photocopies.
		cfg.DetectionThreshold = 0.35
		cfg.CircularityThreshold = 0.50
		cfg.SolidityThreshold = 0.78
		return cfg, nil
	case "evalbee":
		// Matches the EvalBee-style printed sheets: small bubbles, tight rows.
		cfg.MinBubbleArea = 80
		cfg.MaxBubbleArea = 1400
		cfg.BubbleRadius = 9
		cfg.RowTolerance = 9
		cfg.DetectionThreshold = 0.40
		return cfg, nil
	case "dense40":
		// 40-question three-section sheets; needs more rows before committing.
		cfg.MinRowsForLayout = 10
		cfg.RowTolerance = 10
		return cfg, nil
	default:
		return DetectionConfig{}, fmt.Errorf("unknown preset %q", name)
	}
}

// LoadPreset reads a configuration from a YAML file. Missing fields keep
// their defaults so preset files can stay small.
func LoadPreset(path string) (DetectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DetectionConfig{}, fmt.Errorf("failed to read preset: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DetectionConfig{}, fmt.Errorf("failed to parse preset: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DetectionConfig{}, err
	}
	return cfg, nil
}

// SavePreset writes the configuration to a YAML file.
func (c DetectionConfig) SavePreset(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

// Validate checks the configuration for values no pipeline stage can work with.
func (c DetectionConfig) Validate() error {
	if c.MinBubbleArea <= 0 || c.MaxBubbleArea <= c.MinBubbleArea {
		return fmt.Errorf("invalid bubble area range [%.0f, %.0f]", c.MinBubbleArea, c.MaxBubbleArea)
	}
	if c.MinBubblesPerRow < 2 || c.MaxBubblesPerRow < c.MinBubblesPerRow {
		return fmt.Errorf("invalid bubbles-per-row range [%d, %d]", c.MinBubblesPerRow, c.MaxBubblesPerRow)
	}
	if c.DetectionThreshold <= 0 || c.DetectionThreshold >= 1 {
		return fmt.Errorf("detection threshold %.2f outside (0, 1)", c.DetectionThreshold)
	}
	if c.BubbleRadius < 2 {
		return fmt.Errorf("bubble radius %d too small", c.BubbleRadius)
	}
	if c.ExpectedOptionsPerQuestion < 2 || c.ExpectedOptionsPerQuestion > 5 {
		return fmt.Errorf("expected options per question %d outside [2, 5]", c.ExpectedOptionsPerQuestion)
	}
	if c.RecoveryMinRatio <= 0 || c.RecoveryMinRatio > 1 {
		return fmt.Errorf("recovery min ratio %.2f outside (0, 1]", c.RecoveryMinRatio)
	}
	var sum float64
	for name, w := range c.MethodWeights {
		if w < 0 {
			return fmt.Errorf("negative weight for method %q", name)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("method weights sum to %.3f, want 1", sum)
	}
	if !(c.Votes.Low < c.Votes.Med && c.Votes.Med < c.Votes.High) {
		return fmt.Errorf("vote thresholds must be strictly increasing")
	}
	return nil
}

// SectionThreshold returns the detection threshold for a section, honoring a
// per-section override when one is configured.
func (c DetectionConfig) SectionThreshold(section int) float64 {
	if t, ok := c.PerSectionThresholds[section]; ok {
		return t
	}
	return c.DetectionThreshold
}

// WithThreshold returns a copy of the config with a new global detection threshold.
func (c DetectionConfig) WithThreshold(t float64) DetectionConfig {
	c.DetectionThreshold = t
	return c
}

// WithSectionThreshold returns a copy of the config with a per-section
// detection threshold override.
func (c DetectionConfig) WithSectionThreshold(section int, t float64) DetectionConfig {
	overrides := make(map[int]float64, len(c.PerSectionThresholds)+1)
	for k, v := range c.PerSectionThresholds {
		overrides[k] = v
	}
	overrides[section] = t
	c.PerSectionThresholds = overrides
	return c
}

// WithBubbleRadius returns a copy of the config with a new analysis radius.
func (c DetectionConfig) WithBubbleRadius(r int) DetectionConfig {
	c.BubbleRadius = r
	return c
}

// WithWorkers returns a copy of the config with a new worker count.
func (c DetectionConfig) WithWorkers(n int) DetectionConfig {
	c.Workers = n
	return c
}

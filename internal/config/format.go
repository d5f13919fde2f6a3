package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/shower.report/internal/corsika"
	"github.com/banshee-data/shower.report/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/format.defaults.json"

// Layout names accepted by the "layout" field.
const (
	LayoutStandard = "standard"
	LayoutThinned  = "thinned"
)

// Config is the JSON configuration for the shower tools. Every field is
// optional; the Get* methods supply the built-in default for any field that
// is omitted, so partial files are safe.
type Config struct {
	// Particle file layout
	Layout             *string `json:"layout,omitempty"` // "standard" or "thinned"
	WordsPerSubBlock   *int    `json:"words_per_sub_block,omitempty"`
	SubBlocksPerRecord *int    `json:"sub_blocks_per_record,omitempty"`
	WordsPerParticle   *int    `json:"words_per_particle,omitempty"`
	StrictTrailer      *bool   `json:"strict_trailer,omitempty"`

	// Sentinel tags; each window is tag±1
	RunHeaderTag   *float64 `json:"runh_tag,omitempty"`
	EventHeaderTag *float64 `json:"evth_tag,omitempty"`
	EventEndTag    *float64 `json:"evte_tag,omitempty"`
	RunEndTag      *float64 `json:"rune_tag,omitempty"`

	// Lateral distribution
	LateralBins *int     `json:"lateral_bins,omitempty"`
	LateralRMax *float64 `json:"lateral_r_max_m,omitempty"`

	// Longitudinal histograms
	HistogramBins *int `json:"histogram_bins,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// LoadConfig reads a JSON config file. The file must have a .json extension
// and be at most 1MB.
func LoadConfig(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the individual fields and the particle layout they build.
func (c *Config) Validate() error {
	if c.Layout != nil {
		switch *c.Layout {
		case LayoutStandard, LayoutThinned:
		default:
			return fmt.Errorf("layout must be %q or %q, got %q", LayoutStandard, LayoutThinned, *c.Layout)
		}
	}
	if c.LateralBins != nil && *c.LateralBins <= 0 {
		return fmt.Errorf("lateral_bins must be positive, got %d", *c.LateralBins)
	}
	if c.LateralRMax != nil && !(*c.LateralRMax > 0) {
		return fmt.Errorf("lateral_r_max_m must be positive, got %f", *c.LateralRMax)
	}
	if c.HistogramBins != nil && *c.HistogramBins <= 0 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	return c.Format().Validate()
}

// Format builds the particle file layout. The result is a value; changing the
// Config afterwards does not affect it.
func (c *Config) Format() corsika.Format {
	var f corsika.Format
	if c.GetLayout() == LayoutThinned {
		f = corsika.ThinnedFormat()
	} else {
		f = corsika.DefaultFormat()
	}
	if c.WordsPerSubBlock != nil {
		f.WordsPerSubBlock = *c.WordsPerSubBlock
	}
	if c.SubBlocksPerRecord != nil {
		f.SubBlocksPerRecord = *c.SubBlocksPerRecord
	}
	if c.WordsPerParticle != nil {
		f.WordsPerParticle = *c.WordsPerParticle
	}
	f.StrictTrailer = c.GetStrictTrailer()
	f.Windows = [4]corsika.Window{
		corsika.SentinelWindow(corsika.KindRUNH, c.getTag(c.RunHeaderTag, corsika.TagRUNH)),
		corsika.SentinelWindow(corsika.KindEVTH, c.getTag(c.EventHeaderTag, corsika.TagEVTH)),
		corsika.SentinelWindow(corsika.KindEVTE, c.getTag(c.EventEndTag, corsika.TagEVTE)),
		corsika.SentinelWindow(corsika.KindRUNE, c.getTag(c.RunEndTag, corsika.TagRUNE)),
	}
	return f
}

func (c *Config) getTag(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GetLayout returns the layout name or the default.
func (c *Config) GetLayout() string {
	if c.Layout == nil {
		return LayoutStandard
	}
	return *c.Layout
}

// GetStrictTrailer returns the strict_trailer value or the default.
func (c *Config) GetStrictTrailer() bool {
	if c.StrictTrailer == nil {
		return false // trailer mismatches are logged, not fatal
	}
	return *c.StrictTrailer
}

// GetLateralBins returns the lateral_bins value or the default.
func (c *Config) GetLateralBins() int {
	if c.LateralBins == nil {
		return 100
	}
	return *c.LateralBins
}

// GetLateralRMax returns the lateral_r_max_m value or the default.
func (c *Config) GetLateralRMax() float64 {
	if c.LateralRMax == nil {
		return 2000
	}
	return *c.LateralRMax
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *Config) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 30
	}
	return *c.HistogramBins
}

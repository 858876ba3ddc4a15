// Package config loads the §6 configuration table from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the §6 configuration table.
type Config struct {
	FilterSizeSurfMin float64 `yaml:"filter_size_surf_min"`
	FilterSizeMapMin  float64 `yaml:"filter_size_map_min"`
	CubeLen           float64 `yaml:"cube_len"`
	DetRange          float64 `yaml:"det_range"`
	MovThreshold      float64 `yaml:"mov_threshold"`

	GyrCov  float64 `yaml:"gyr_cov"`
	AccCov  float64 `yaml:"acc_cov"`
	BGyrCov float64 `yaml:"b_gyr_cov"`
	BAccCov float64 `yaml:"b_acc_cov"`

	NumMaxIterations int `yaml:"num_max_iterations"`

	ExtrinsicT [3]float64 `yaml:"extrinsic_t"`
	ExtrinsicR [4]float64 `yaml:"extrinsic_r"` // w, x, y, z

	InitTime float64 `yaml:"init_time"`

	MapOutputPath string `yaml:"map_output_path"`
}

// Default returns the documented nominal tuning.
func Default() Config {
	return Config{
		FilterSizeSurfMin: 0.5,
		FilterSizeMapMin:  0.5,
		CubeLen:           1000,
		DetRange:          450,
		MovThreshold:      1.5,

		GyrCov:  0.1,
		AccCov:  0.1,
		BGyrCov: 1e-4,
		BAccCov: 1e-4,

		NumMaxIterations: 3,

		ExtrinsicT: [3]float64{0, 0, 0},
		ExtrinsicR: [4]float64{1, 0, 0, 0},

		InitTime: 0.1,
	}
}

// Load reads a YAML config file at path, applying Default() first so any
// field omitted from the file keeps its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DatasetConfig is the YOLO-style dataset descriptor consumed by external
// training tools.
type DatasetConfig struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Names map[int]string `yaml:"names"`
}

func NewDatasetConfig(dir string, classes []string) DatasetConfig {
	names := make(map[int]string, len(classes))
	for i, name := range classes {
		names[i] = name
	}
	return DatasetConfig{
		Path:  dir,
		Train: filepath.Join(dir, "train"),
		Val:   filepath.Join(dir, "val"),
		Names: names,
	}
}

// WriteDatasetYAML writes dataset.yaml into dir and returns its path.
func WriteDatasetYAML(dir string, classes []string) (string, error) {
	if len(classes) == 0 {
		return "", fmt.Errorf("no training classes configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}

	data, err := yaml.Marshal(NewDatasetConfig(dir, classes))
	if err != nil {
		return "", fmt.Errorf("failed to marshal dataset config: %w", err)
	}

	path := filepath.Join(dir, "dataset.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

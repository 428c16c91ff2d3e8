package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category maps a chick age category to its temperature-humidity model artifact
type Category struct {
	Name      string `yaml:"name"`
	ModelPath string `yaml:"model"`
}

// CategoriesFile is the YAML layout of CATEGORIES_FILE
type CategoriesFile struct {
	Default    string     `yaml:"default"`
	Categories []Category `yaml:"categories"`
}

// DefaultCategories returns the age categories shipped with the firmware
func DefaultCategories() []Category {
	return []Category{
		{Name: "0-3", ModelPath: "models/smart_cage_model_03.json"},
		{Name: "4-7", ModelPath: "models/smart_cage_model_47.json"},
		{Name: "8-14", ModelPath: "models/smart_cage_model_814.json"},
		{Name: "15-21", ModelPath: "models/smart_cage_model_1521.json"},
		{Name: "22-30", ModelPath: "models/smart_cage_model_2230.json"},
	}
}

// LoadCategoriesFile parses a categories YAML file
func LoadCategoriesFile(path string) (*CategoriesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}

	var file CategoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse categories file %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s defines no categories", path)
	}

	seen := make(map[string]bool, len(file.Categories))
	for _, cat := range file.Categories {
		if cat.Name == "" || cat.ModelPath == "" {
			return nil, fmt.Errorf("categories file %s: every category needs a name and a model", path)
		}
		if seen[cat.Name] {
			return nil, fmt.Errorf("categories file %s: duplicate category %q", path, cat.Name)
		}
		seen[cat.Name] = true
	}
	return &file, nil
}

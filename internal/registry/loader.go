package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relaydev/relay/pkg/models"
)

// registryFile is the YAML shape of a registry configuration file.
type registryFile struct {
	Agents []models.AgentDescriptor `yaml:"agents"`
}

// LoadFile reads a registry YAML file and builds a validated registry.
// Malformed or referentially broken configuration is a fatal error; the
// process should refuse to start on it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses registry YAML and builds a validated registry.
func LoadBytes(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	return Load(file.Agents)
}

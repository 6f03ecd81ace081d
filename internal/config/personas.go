package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PersonaSeed describes one agent to bootstrap on first boot.
type PersonaSeed struct {
	Name             string `yaml:"name"`
	BackgroundPrompt string `yaml:"background_prompt"`
	Kind             string `yaml:"kind"` // "persona" or "bot"
	Model            string `yaml:"model"`
	MayCreateAgents  bool   `yaml:"may_create_agents"`
	JoinRoomName     string `yaml:"join_room"` // name of another seed to join, optional
}

// LoadPersonaSeeds reads the YAML persona-seed file named by General.PersonasFile.
// An empty path is not an error: it just means no seeds are bootstrapped.
func LoadPersonaSeeds(path string) ([]PersonaSeed, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file %s: %w", path, err)
	}
	var seeds []PersonaSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse personas file %s: %w", path, err)
	}
	for i := range seeds {
		if seeds[i].Kind == "" {
			seeds[i].Kind = "persona"
		}
	}
	return seeds, nil
}

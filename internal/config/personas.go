package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persona is a named system prompt
type Persona struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
}

// PersonaConfig stores all personas
type PersonaConfig struct {
	Personas []Persona `json:"personas"`
}

// DefaultPersonas returns pre-configured personas
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:         "default",
			Description:  "No system prompt",
			SystemPrompt: "",
		},
		{
			Name:         "concise",
			Description:  "Short, direct answers",
			SystemPrompt: "Answer as briefly as possible. Skip preambles and restating the question.",
		},
		{
			Name:        "coder",
			Description: "Programming assistant",
			SystemPrompt: `You are an experienced software engineer. When answering:
- Prefer working code over long explanations
- Use fenced code blocks with a language tag
- Point out edge cases and failure modes`,
		},
		{
			Name:        "writer",
			Description: "Creative writing assistant",
			SystemPrompt: `You are a creative writing assistant. Your goal is to:
- Help with creative writing, storytelling, and content creation
- Keep a consistent tone and style
- Offer alternatives when asked`,
		},
		{
			Name:        "teacher",
			Description: "Patient educational assistant",
			SystemPrompt: `You are a patient and thorough teacher. When explaining:
- Break down complex topics into simple parts
- Use analogies and examples
- Adapt explanations to the learner's level`,
		},
	}
}

// GetPersonasPath returns the path to the personas file
func GetPersonasPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "personas.json"), nil
}

// LoadPersonas loads the built-in personas merged with the user's
func LoadPersonas() (*PersonaConfig, error) {
	path, err := GetPersonasPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PersonaConfig{Personas: DefaultPersonas()}, nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var config PersonaConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}

	// Merge with defaults (keep user customizations)
	config.Personas = mergePersonas(DefaultPersonas(), config.Personas)

	return &config, nil
}

// SavePersonas saves the persona configuration
func SavePersonas(config *PersonaConfig) error {
	path, err := GetPersonasPath()
	if err != nil {
		return err
	}

	if _, err := EnsureConfigDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// GetPersona returns a persona by name
func GetPersona(name string) (*Persona, error) {
	if name == "" {
		name = "default"
	}

	config, err := LoadPersonas()
	if err != nil {
		return nil, err
	}

	for _, p := range config.Personas {
		if p.Name == name {
			return &p, nil
		}
	}

	return nil, fmt.Errorf("persona '%s' not found", name)
}

// AddPersona adds a new persona
func AddPersona(persona Persona) error {
	if err := ValidatePersona(persona); err != nil {
		return err
	}

	config, err := LoadPersonas()
	if err != nil {
		return err
	}

	for _, p := range config.Personas {
		if p.Name == persona.Name {
			return fmt.Errorf("persona '%s' already exists", persona.Name)
		}
	}

	config.Personas = append(config.Personas, persona)
	return SavePersonas(config)
}

// DeletePersona removes a persona by name
func DeletePersona(name string) error {
	if name == "default" {
		return fmt.Errorf("cannot delete the default persona")
	}

	config, err := LoadPersonas()
	if err != nil {
		return err
	}

	newPersonas := make([]Persona, 0, len(config.Personas))
	found := false
	for _, p := range config.Personas {
		if p.Name == name {
			found = true
			continue
		}
		newPersonas = append(newPersonas, p)
	}

	if !found {
		return fmt.Errorf("persona '%s' not found", name)
	}

	config.Personas = newPersonas
	return SavePersonas(config)
}

func mergePersonas(defaults, custom []Persona) []Persona {
	result := make([]Persona, len(defaults))
	copy(result, defaults)

	// Add or replace with custom
	for _, cp := range custom {
		found := false
		for i, dp := range result {
			if dp.Name == cp.Name {
				result[i] = cp
				found = true
				break
			}
		}
		if !found {
			result = append(result, cp)
		}
	}

	return result
}

// Validation constants
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 200
	MaxPromptLength      = 32 * 1024 // 32KB
)

// ValidatePersona validates a persona's fields
func ValidatePersona(p Persona) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("persona name is required")
	case len(p.Name) > MaxNameLength:
		return fmt.Errorf("persona name too long (max %d characters)", MaxNameLength)
	case !isValidPersonaName(p.Name):
		return fmt.Errorf("persona name must contain only alphanumeric characters, underscores, and hyphens")
	case len(p.Description) > MaxDescriptionLength:
		return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	case len(p.SystemPrompt) > MaxPromptLength:
		return fmt.Errorf("system prompt too long (max %d characters)", MaxPromptLength)
	}
	return nil
}

func isValidPersonaName(name string) bool {
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

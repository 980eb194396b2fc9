package rolepost

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	ModeMinister = "minister"
	ModeDiplomat = "diplomat"
	ModeExaminer = "examiner"
)

//go:embed modes.yaml
var modesYAML []byte

// Mode is one role-speech persona: how re-sent posts are authored and which roles may use it.
type Mode struct {
	Key         string `yaml:"key"`
	Label       string `yaml:"label"`
	EmbedName   string `yaml:"embed_name"`
	EmbedIcon   string `yaml:"embed_icon"`
	WebhookName string `yaml:"webhook_name"`
	WebhookIcon string `yaml:"webhook_icon"`
	Color       int    `yaml:"color"`

	RoleIDs []string `yaml:"-"`
}

type catalog struct {
	Modes []Mode `yaml:"modes"`
}

// LoadModes parses the embedded catalog and binds role ids by mode key.
func LoadModes(roleIDs map[string][]string) ([]Mode, error) {
	return parseModes(modesYAML, roleIDs)
}

func parseModes(raw []byte, roleIDs map[string][]string) ([]Mode, error) {
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse rolepost modes: %w", err)
	}
	seen := make(map[string]bool, len(c.Modes))
	for i := range c.Modes {
		m := &c.Modes[i]
		if m.Key == "" || m.EmbedName == "" || m.WebhookName == "" {
			return nil, fmt.Errorf("rolepost mode %d is incomplete", i)
		}
		if seen[m.Key] {
			return nil, fmt.Errorf("rolepost mode %q is duplicated", m.Key)
		}
		seen[m.Key] = true
		if m.Label == "" {
			m.Label = m.EmbedName
		}
		m.RoleIDs = append([]string(nil), roleIDs[m.Key]...)
	}
	return c.Modes, nil
}

// Held reports the first of the mode's roles found in roleIDs.
func (m Mode) Held(roleIDs []string) (string, bool) {
	for _, rid := range m.RoleIDs {
		if slices.Contains(roleIDs, rid) {
			return rid, true
		}
	}
	return "", false
}

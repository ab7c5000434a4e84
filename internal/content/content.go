// Package content loads the static mission and milestone lists, plus
// optional riddle overrides, from YAML.
package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/riddle"
)

//go:embed defaults.yaml
var defaults []byte

// Content is the static game content served by the missions, milestones, and
// riddle endpoints.
type Content struct {
	Missions   []models.Mission   `yaml:"missions"`
	Milestones []models.Milestone `yaml:"milestones"`
	Riddles    []riddle.Riddle    `yaml:"riddles"`

	byID map[string]models.Mission
}

// Load reads content from path, or the embedded defaults when path is empty.
func Load(path string) (*Content, error) {
	data := defaults
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content file: %w", err)
		}
	}

	c := &Content{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse content file: %w", err)
	}

	c.byID = make(map[string]models.Mission, len(c.Missions))
	for _, m := range c.Missions {
		if m.ID == "" {
			return nil, fmt.Errorf("mission %q has no id", m.Title)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mission id %q", m.ID)
		}
		c.byID[m.ID] = m
	}
	return c, nil
}

// Mission looks up a mission by ID.
func (c *Content) Mission(id string) (models.Mission, bool) {
	m, ok := c.byID[id]
	return m, ok
}

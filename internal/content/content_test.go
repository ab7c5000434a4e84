package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Len(t, c.Missions, 5)
	assert.Len(t, c.Milestones, 6)

	m, ok := c.Mission("decode-first-message")
	require.True(t, ok)
	assert.Equal(t, 100, m.Reward)
	assert.Equal(t, "EASY", m.Difficulty)

	_, ok = c.Mission("missing")
	assert.False(t, ok)
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	data := `
missions:
  - id: only-mission
    title: Only Mission
    difficulty: EASY
    description: test
    reward: 50
milestones:
  - title: Only Milestone
    description: test
    reward: 10
riddles:
  - id: test
    prompt: "?"
    answer: "ANSWER"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Missions, 1)
	assert.Len(t, c.Milestones, 1)
	assert.Len(t, c.Riddles, 1)
}

func TestLoadRejectsDuplicateMissionIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	data := `
missions:
  - id: dup
    title: One
    reward: 10
  - id: dup
    title: Two
    reward: 20
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "duplicate mission id")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/content.yaml")
	assert.Error(t, err)
}

package riddle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "CLOCK", Normalize("clock"))
	assert.Equal(t, "CLOCK", Normalize("  c l o c k  "))
	assert.Equal(t, "FOOTSTEPS", Normalize("FootSteps"))
	assert.Equal(t, "", Normalize("   "))
}

func TestCheck(t *testing.T) {
	p := NewPool(nil)

	assert.True(t, p.Check("clock", "CLOCK"))
	assert.True(t, p.Check("clock", "clock"))
	assert.True(t, p.Check("clock", " clo ck "))
	assert.False(t, p.Check("clock", "WATCH"))
	assert.False(t, p.Check("nonexistent", "CLOCK"))
}

func TestPickReturnsPoolMember(t *testing.T) {
	p := NewPool([]Riddle{
		{ID: "a", Prompt: "?", Answer: "A"},
		{ID: "b", Prompt: "?", Answer: "B"},
	})

	for i := 0; i < 20; i++ {
		picked := p.Pick()
		require.Contains(t, []string{"a", "b"}, picked.ID)
	}
}

func TestDefaultPoolAnswersAreSingleWords(t *testing.T) {
	p := NewPool(nil)
	for _, r := range p.riddles {
		assert.Equal(t, Normalize(r.Answer), r.Answer, "riddle %s", r.ID)
		assert.NotEmpty(t, r.Prompt)
	}
}

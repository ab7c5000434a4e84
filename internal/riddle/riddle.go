// Package riddle holds the registration gate puzzles. All answers are single
// words; case and whitespace are ignored when checking.
package riddle

import (
	"math/rand"
	"strings"
)

// Riddle is one puzzle. The answer never leaves the server.
type Riddle struct {
	ID     string `yaml:"id"`
	Prompt string `yaml:"prompt"`
	Answer string `yaml:"answer"`
}

// defaultPool ships with the binary; overridable via the content file.
var defaultPool = []Riddle{
	{ID: "clock", Prompt: "I have hands but no arms or legs.", Answer: "CLOCK"},
	{ID: "footsteps", Prompt: "The more you take, the more you leave behind.", Answer: "FOOTSTEPS"},
	{ID: "age", Prompt: "I go up but never come down.", Answer: "AGE"},
	{ID: "coin", Prompt: "What has a head and a tail but no body?", Answer: "COIN"},
	{ID: "sponge", Prompt: "I'm full of holes but still hold water.", Answer: "SPONGE"},
	{ID: "needle", Prompt: "What has one eye but can't see?", Answer: "NEEDLE"},
	{ID: "towel", Prompt: "What gets wetter the more it dries?", Answer: "TOWEL"},
	{ID: "piano", Prompt: "What has keys but can't open locks?", Answer: "PIANO"},
	{ID: "water", Prompt: "What runs but never walks?", Answer: "WATER"},
	{ID: "stamp", Prompt: "What can travel around the world while staying in a corner?", Answer: "STAMP"},
}

// Pool is a fixed set of riddles to issue and check.
type Pool struct {
	riddles []Riddle
	byID    map[string]Riddle
}

// NewPool builds a pool from the given riddles, or the built-in set when
// empty.
func NewPool(riddles []Riddle) *Pool {
	if len(riddles) == 0 {
		riddles = defaultPool
	}
	byID := make(map[string]Riddle, len(riddles))
	for _, r := range riddles {
		byID[r.ID] = r
	}
	return &Pool{riddles: riddles, byID: byID}
}

// Pick returns a random riddle from the pool.
func (p *Pool) Pick() Riddle {
	return p.riddles[rand.Intn(len(p.riddles))]
}

// Check reports whether answer solves the riddle with the given ID. Unknown
// IDs never match.
func (p *Pool) Check(id, answer string) bool {
	r, ok := p.byID[id]
	if !ok {
		return false
	}
	return Normalize(answer) == Normalize(r.Answer)
}

// Normalize upper-cases and strips all whitespace, matching how answers were
// entered in the field.
func Normalize(answer string) string {
	return strings.ToUpper(strings.Join(strings.Fields(answer), ""))
}

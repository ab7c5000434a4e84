package models

// Mission is a static operation agents can complete for points.
type Mission struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Difficulty  string `json:"difficulty" yaml:"difficulty"`
	Description string `json:"description" yaml:"description"`
	Reward      int    `json:"reward" yaml:"reward"`
}

// Milestone is a named achievement band shown on the milestones page.
type Milestone struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Reward      int    `json:"reward" yaml:"reward"`
}

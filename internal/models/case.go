package models

import (
	"fmt"
	"math"
	"time"
)

const (
	CaseStatusDraft     = "draft"
	CaseStatusPublished = "published"
	CaseStatusArchived  = "archived"
)

type StepOption struct {
	ID        string  `bson:"id" json:"id"`
	Text      string  `bson:"text" json:"text"`
	IsCorrect bool    `bson:"is_correct" json:"is_correct"`
	Points    float64 `bson:"points" json:"points"`
}

// CaseStep is one decision point in a case. Prerequisites lists the step IDs
// that must be answered before this step becomes eligible.
type CaseStep struct {
	ID            string       `bson:"id" json:"id"`
	Prompt        string       `bson:"prompt" json:"prompt"`
	Prerequisites []string     `bson:"prerequisites" json:"prerequisites"`
	Options       []StepOption `bson:"options" json:"options"`
}

// CaseGraph is the immutable definition of a clinical case: an ordered list of
// steps plus case-level metadata. Graphs are validated once at publish time;
// the session engine assumes a valid graph.
type CaseGraph struct {
	ID                      string     `bson:"_id,omitempty" json:"id"`
	Title                   string     `bson:"title" json:"title"`
	Description             string     `bson:"description" json:"description"`
	Specialty               string     `bson:"specialty" json:"specialty"`
	Difficulty              string     `bson:"difficulty" json:"difficulty"`
	Status                  string     `bson:"status" json:"status"`
	MaxScore                float64    `bson:"max_score" json:"max_score"`
	ExpectedDurationSeconds int        `bson:"expected_duration_seconds" json:"expected_duration_seconds"`
	Steps                   []CaseStep `bson:"steps" json:"steps"`
	CreatedAt               time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `bson:"updated_at" json:"updated_at"`
}

func (c *CaseGraph) Published() bool {
	return c.Status == CaseStatusPublished
}

// Step returns the step with the given id, or nil.
func (c *CaseGraph) Step(stepID string) *CaseStep {
	for i := range c.Steps {
		if c.Steps[i].ID == stepID {
			return &c.Steps[i]
		}
	}
	return nil
}

// Option returns the option with the given id, or nil.
func (s *CaseStep) Option(optionID string) *StepOption {
	for i := range s.Options {
		if s.Options[i].ID == optionID {
			return &s.Options[i]
		}
	}
	return nil
}

// BestPoints is the highest point value among the step's options.
func (s *CaseStep) BestPoints() float64 {
	best := 0.0
	for _, opt := range s.Options {
		if opt.Points > best {
			best = opt.Points
		}
	}
	return best
}

// Validate checks the graph at publish time: unique ids, prerequisites that
// reference existing steps, no prerequisite cycles, and a MaxScore that
// matches the sum of each step's best option. A graph that fails here must
// never be published; the resolver does not re-check any of this at session
// time.
func (c *CaseGraph) Validate() error {
	if len(c.Steps) == 0 {
		return fmt.Errorf("case %s has no steps", c.ID)
	}

	stepIDs := make(map[string]bool, len(c.Steps))
	for _, step := range c.Steps {
		if step.ID == "" {
			return fmt.Errorf("case %s contains a step with an empty id", c.ID)
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		stepIDs[step.ID] = true

		if len(step.Options) == 0 {
			return fmt.Errorf("step %q has no options", step.ID)
		}
		optionIDs := make(map[string]bool, len(step.Options))
		for _, opt := range step.Options {
			if opt.ID == "" {
				return fmt.Errorf("step %q contains an option with an empty id", step.ID)
			}
			if optionIDs[opt.ID] {
				return fmt.Errorf("step %q has duplicate option id %q", step.ID, opt.ID)
			}
			optionIDs[opt.ID] = true
			if opt.Points < 0 {
				return fmt.Errorf("step %q option %q has negative points", step.ID, opt.ID)
			}
		}
	}

	for _, step := range c.Steps {
		for _, pre := range step.Prerequisites {
			if !stepIDs[pre] {
				return fmt.Errorf("step %q requires unknown step %q", step.ID, pre)
			}
			if pre == step.ID {
				return fmt.Errorf("step %q requires itself", step.ID)
			}
		}
	}

	if err := c.checkCycles(); err != nil {
		return err
	}

	expected := 0.0
	for i := range c.Steps {
		expected += c.Steps[i].BestPoints()
	}
	if math.Abs(expected-c.MaxScore) > 1e-9 {
		return fmt.Errorf("max score %.2f does not match best-option sum %.2f", c.MaxScore, expected)
	}

	return nil
}

// checkCycles runs a DFS over the prerequisite relation. A cycle makes every
// step on it unreachable, so the whole graph is rejected.
func (c *CaseGraph) checkCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[string]int, len(c.Steps))
	var visit func(stepID string) error
	visit = func(stepID string) error {
		switch state[stepID] {
		case visiting:
			return fmt.Errorf("prerequisite cycle involving step %q", stepID)
		case done:
			return nil
		}
		state[stepID] = visiting
		for _, pre := range c.Step(stepID).Prerequisites {
			if err := visit(pre); err != nil {
				return err
			}
		}
		state[stepID] = done
		return nil
	}

	for _, step := range c.Steps {
		if err := visit(step.ID); err != nil {
			return err
		}
	}
	return nil
}

// OptionView is an answer option as shown to the learner before the step is
// answered. Correctness and point values are deliberately absent.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// StepView is the redacted form of a step returned to callers.
type StepView struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []OptionView `json:"options"`
}

// NewStepView redacts a step for presentation.
func NewStepView(step *CaseStep) *StepView {
	view := &StepView{
		ID:      step.ID,
		Prompt:  step.Prompt,
		Options: make([]OptionView, 0, len(step.Options)),
	}
	for _, opt := range step.Options {
		view.Options = append(view.Options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	return view
}

// Package plan implements the pure logic over a project's staged Plan:
// locating the active stage/story and applying the terminal-state
// mutations the Pipeline drives.
package plan

// Priority is the urgency of a Story.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityStandard Priority = "standard"
)

// Story is an atomic unit of work within a Stage.
type Story struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     Priority `json:"priority"`
	Passes       bool     `json:"passes"`
	IsSkipped    bool     `json:"isSkipped"`
	SkipReason   string   `json:"skipReason,omitempty"`
	IsSubtasked  bool     `json:"isSubtasked,omitempty"`
}

// terminal reports whether a story has reached passes or isSkipped.
func (s *Story) terminal() bool {
	return s.Passes || s.IsSkipped
}

// Stage is a named grouping of Stories with a mission statement.
type Stage struct {
	Name        string  `json:"name"`
	Mission     string  `json:"mission"`
	IsCompleted bool    `json:"isCompleted"`
	Stories     []Story `json:"stories"`
}

// Plan is the staged list of work for a project.
type Plan struct {
	Stages []Stage `json:"stages"`
}

// ActiveStage returns a pointer to the first non-completed stage, or nil
// if every stage is complete. Running this twice with no writes in
// between returns the same result.
func ActiveStage(p *Plan) *Stage {
	for i := range p.Stages {
		if !p.Stages[i].IsCompleted {
			return &p.Stages[i]
		}
	}
	return nil
}

// ActiveStory returns a pointer to the first story in stage with neither
// terminal flag set, or nil if the stage is already done.
func ActiveStory(stage *Stage) *Story {
	for i := range stage.Stories {
		if !stage.Stories[i].terminal() {
			return &stage.Stories[i]
		}
	}
	return nil
}

// MarkStoryPassed sets s.Passes; IsSkipped is left untouched. Passes is
// monotonic: it is never cleared except by explicit plan replacement.
func MarkStoryPassed(s *Story) {
	s.Passes = true
}

// MarkStorySkipped sets s.IsSkipped with the given reason. Monotonic in
// the same sense as MarkStoryPassed.
func MarkStorySkipped(s *Story, reason string) {
	s.IsSkipped = true
	s.SkipReason = reason
}

// MarkStageCompleteIfDone sets stage.IsCompleted when every contained
// story has terminated (passes or skipped). A stage with zero stories is
// considered complete.
func MarkStageCompleteIfDone(stage *Stage) {
	for i := range stage.Stories {
		if !stage.Stories[i].terminal() {
			return
		}
	}
	stage.IsCompleted = true
}

// ReplaceStory replaces old (found by identity, i.e. positional match) in
// stage with subtasks, preserving the order of the remaining stories.
// There is no stable story id; identity is positional within the stage.
// Returns false if old was not found in stage.
func ReplaceStory(stage *Stage, old *Story, subtasks []Story) bool {
	for i := range stage.Stories {
		if &stage.Stories[i] == old {
			rest := make([]Story, 0, len(stage.Stories)-1+len(subtasks))
			rest = append(rest, stage.Stories[:i]...)
			rest = append(rest, subtasks...)
			rest = append(rest, stage.Stories[i+1:]...)
			stage.Stories = rest
			return true
		}
	}
	return false
}

// Done reports whether every stage in the plan is complete.
func Done(p *Plan) bool {
	return ActiveStage(p) == nil
}

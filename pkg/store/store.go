// Package store implements the durable, atomic JSON document that backs
// the orchestrator: projects, global settings, and the lessons log.
//
// Writes go through a single serializing goroutine (a mailbox), matching
// the process-wide single-writer requirement: concurrent mutators from
// different pipelines must serialise rather than race on the same file.
// The write-then-rename idiom (marshal → temp file → os.Rename) follows
// the same atomic-save discipline used for the on-disk plan document.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const lessonsCap = 50

// legacyCodexPath is the pre-migration value normalised to "codex" on load.
const legacyCodexPath = "npx codex-cli"

// Project is a top-level unit of work tracked by the orchestrator.
type Project struct {
	ID             string    `json:"id"`
	RootPath       string    `json:"rootPath"`
	Plan           Plan      `json:"plan"`
	Status         string    `json:"status"` // created, initialized, running, paused, completed, error
	Iteration      int       `json:"iteration"`
	UseHumanReview bool      `json:"useHumanReview"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Plan mirrors pkg/plan.Plan's JSON shape without importing it, so the
// store package has no dependency on the pipeline/plan domain logic — it
// only persists and retrieves the document.
type Plan struct {
	Stages []Stage `json:"stages"`
}

type Stage struct {
	Name        string  `json:"name"`
	Mission     string  `json:"mission"`
	IsCompleted bool    `json:"isCompleted"`
	Stories     []Story `json:"stories"`
}

type Story struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Passes      bool   `json:"passes"`
	IsSkipped   bool   `json:"isSkipped"`
	SkipReason  string `json:"skipReason,omitempty"`
	IsSubtasked bool   `json:"isSubtasked,omitempty"`
}

// ChatSettings is the nested chat-bridge configuration.
type ChatSettings struct {
	Enabled        bool   `json:"enabled"`
	Token          string `json:"token,omitempty"`
	ChatID         string `json:"chatId,omitempty"`
	UseHumanReview bool   `json:"useHumanReview"`
}

// Settings is the closed, recognised set of global overrides.
type Settings struct {
	MaxIterations     int          `json:"maxIterations"`
	MaxRetriesPerTask int          `json:"maxRetriesPerTask"`
	BaseSleepTime     int          `json:"baseSleepTime"` // ms
	BackoffMultiplier float64      `json:"backoffMultiplier"`
	UseReviewerAgent  bool         `json:"useReviewerAgent"`
	AutoTest          bool         `json:"autoTest"`
	Chat              ChatSettings `json:"chat"`

	// CodexPath is legacy config kept for the load-time migration; not
	// part of the documented override set but must round-trip.
	CodexPath string `json:"codexPath,omitempty"`
}

// Lesson is a bounded record of a task failure, fed back into subsequent
// developer prompts.
type Lesson struct {
	Project   string `json:"project"`
	Stage     string `json:"stage"`
	Task      string `json:"task"`
	Error     string `json:"error"` // capped to 500 chars by the caller
	Timestamp string `json:"timestamp"`
}

// document is the on-disk shape at <dataDir>/db.json.
type document struct {
	Projects []Project `json:"projects"`
	Lessons  []Lesson  `json:"lessons"`
	Settings Settings  `json:"settings"`
}

func defaultSettings() Settings {
	return Settings{
		MaxIterations:     100,
		MaxRetriesPerTask: 3,
		BaseSleepTime:     2000,
		BackoffMultiplier: 2.0,
		UseReviewerAgent:  true,
		AutoTest:          false,
	}
}

// mutation is a unit of work run exclusively by the single writer
// goroutine; fn mutates doc in place and the result is persisted after fn
// returns nil.
type mutation struct {
	fn   func(doc *document) error
	done chan error
}

// Store is the process-wide, single-writer JSON document store.
type Store struct {
	path string

	mu  sync.RWMutex // guards doc for readers; writer also holds it while swapping
	doc document

	mutations chan mutation
	closeOnce sync.Once
	closed    chan struct{}
	log       *slog.Logger
}

// New creates a Store backed by <dataDir>/db.json, loading any existing
// document and starting the serializing writer goroutine. dataDir is
// created if missing.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	s := &Store{
		path:      filepath.Join(dataDir, "db.json"),
		mutations: make(chan mutation),
		closed:    make(chan struct{}),
		log:       slog.Default().With("component", "store"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	go s.run()
	return s, nil
}

// load reads the document from disk, applying the legacy codexPath
// migration. A missing file is not an error — defaults are used.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = document{Settings: defaultSettings()}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading store file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing store file: %w", err)
	}
	if doc.Settings.CodexPath == legacyCodexPath {
		doc.Settings.CodexPath = "codex"
	}
	s.doc = doc
	return nil
}

// run is the single writer goroutine: every mutation is applied in
// order, then the whole document is persisted atomically.
func (s *Store) run() {
	for {
		select {
		case m := <-s.mutations:
			s.mu.Lock()
			err := m.fn(&s.doc)
			if err == nil {
				err = s.persist()
			}
			s.mu.Unlock()
			m.done <- err
		case <-s.closed:
			return
		}
	}
}

// persist writes the current document atomically: marshal, write to a
// temp file beside the target, then rename over it.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling store document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp store file: %w", err)
	}
	return nil
}

// mutate submits fn to the single writer goroutine and waits for it to
// complete (and, on success, for the result to be persisted to disk).
func (s *Store) mutate(fn func(doc *document) error) error {
	done := make(chan error, 1)
	select {
	case s.mutations <- mutation{fn: fn, done: done}:
	case <-s.closed:
		return fmt.Errorf("store closed")
	}
	return <-done
}

// Close stops the writer goroutine. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// GetProjects returns a snapshot copy of all projects.
func (s *Store) GetProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, len(s.doc.Projects))
	copy(out, s.doc.Projects)
	return out
}

// GetProject returns a copy of the project with the given id, or
// (Project{}, false) if it does not exist.
func (s *Store) GetProject(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.doc.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// SaveProject inserts patch, or replaces the stored project with the same
// id, bumping UpdatedAt. The replacement is wholesale: fields of patch
// left at their zero value overwrite the stored values and are not
// merged from the existing record. Only CreatedAt is carried over from
// the existing record when patch leaves it zero; on insert it is set to
// now.
func (s *Store) SaveProject(patch Project) error {
	return s.mutate(func(doc *document) error {
		now := time.Now()
		patch.UpdatedAt = now
		for i := range doc.Projects {
			if doc.Projects[i].ID == patch.ID {
				if patch.CreatedAt.IsZero() {
					patch.CreatedAt = doc.Projects[i].CreatedAt
				}
				doc.Projects[i] = patch
				return nil
			}
		}
		if patch.CreatedAt.IsZero() {
			patch.CreatedAt = now
		}
		doc.Projects = append(doc.Projects, patch)
		return nil
	})
}

// UpdatePlan replaces the Plan for project id.
func (s *Store) UpdatePlan(id string, p Plan) error {
	return s.mutate(func(doc *document) error {
		for i := range doc.Projects {
			if doc.Projects[i].ID == id {
				doc.Projects[i].Plan = p
				doc.Projects[i].UpdatedAt = time.Now()
				return nil
			}
		}
		return fmt.Errorf("project %q not found", id)
	})
}

// GetSettings returns a copy of the global settings.
func (s *Store) GetSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Settings
}

// UpdateSettings replaces the global settings wholesale. The recognised
// override set is closed; callers (the HTTP layer) are responsible for
// rejecting unknown keys before calling this.
func (s *Store) UpdateSettings(full Settings) error {
	return s.mutate(func(doc *document) error {
		doc.Settings = full
		return nil
	})
}

// GetLessons returns a copy of the lessons FIFO, oldest first.
func (s *Store) GetLessons() []Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lesson, len(s.doc.Lessons))
	copy(out, s.doc.Lessons)
	return out
}

// SaveLesson appends l, trimming the FIFO to at most 50 entries.
func (s *Store) SaveLesson(l Lesson) error {
	return s.mutate(func(doc *document) error {
		doc.Lessons = append(doc.Lessons, l)
		if len(doc.Lessons) > lessonsCap {
			doc.Lessons = doc.Lessons[len(doc.Lessons)-lessonsCap:]
		}
		return nil
	})
}

// DeleteLesson removes the lesson with the given timestamp, if present.
func (s *Store) DeleteLesson(timestamp string) error {
	return s.mutate(func(doc *document) error {
		for i := range doc.Lessons {
			if doc.Lessons[i].Timestamp == timestamp {
				doc.Lessons = append(doc.Lessons[:i], doc.Lessons[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

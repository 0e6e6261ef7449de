package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/frartenzo/webeep-sync/internal/utils"
)

// Store is the durable settings store. All mutation goes through Update,
// which persists the whole file atomically before returning.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings *Settings
}

// NewStore loads settings from path, falling back to defaults when the
// file does not exist yet.
func NewStore(path string) (*Store, error) {
	st := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		st.settings = DefaultSettings()
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", path, err)
	}
	s.normalize()
	st.settings = &s
	return st, nil
}

// Path returns the on-disk location of the settings file.
func (st *Store) Path() string {
	return st.path
}

// Get returns a copy of the current settings.
func (st *Store) Get() *Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings.clone()
}

// Update applies fn to the settings and persists the result. The previous
// file content stays intact if the write fails.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings.clone()
	fn(next)
	next.normalize()

	if err := st.save(next); err != nil {
		return err
	}
	st.settings = next
	return nil
}

// Save persists the current settings, creating the file if needed.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.save(st.settings)
}

func (st *Store) save(s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := utils.WriteFileAtomic(st.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %q: %w", st.path, err)
	}
	return nil
}

// CourseShouldSync reports whether a course is flagged for syncing.
// Unknown courses default to false.
func (st *Store) CourseShouldSync(courseID int64) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	cs, ok := st.settings.Courses[courseID]
	return ok && cs.ShouldSync
}

// SetCourseSync flags or unflags a course for syncing.
func (st *Store) SetCourseSync(courseID int64, shouldSync bool) error {
	return st.Update(func(s *Settings) {
		cs, ok := s.Courses[courseID]
		if !ok {
			cs = &CourseSettings{}
			s.Courses[courseID] = cs
		}
		cs.ShouldSync = shouldSync
	})
}

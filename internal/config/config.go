// Package config holds the durable client settings: where files are
// mirrored, which courses are synced, and how autosync behaves.
package config

import (
	"os"
	"path/filepath"
	"time"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".webeep-sync")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "settings.json")
	DefaultServerURL  = "https://webeep.polimi.it"
)

const (
	DefaultAutosyncInterval = time.Hour
	DefaultDownloadWorkers  = 4
	DefaultControlAddr      = "localhost:9841"
)

// CourseSettings are the per-course preferences.
type CourseSettings struct {
	ShouldSync bool   `json:"should_sync"`
	CustomName string `json:"custom_name,omitempty"`
}

// Settings is the full durable configuration. It is rewritten as a whole
// on every change, never patched in place.
type Settings struct {
	ServerURL        string                    `json:"server_url"`
	DownloadPath     string                    `json:"download_path"`
	AutosyncEnabled  bool                      `json:"autosync_enabled"`
	AutosyncInterval Duration                  `json:"autosync_interval"`
	DownloadWorkers  int                       `json:"download_workers"`
	Language         string                    `json:"language"`
	ControlAddr      string                    `json:"control_addr"`
	ControlToken     string                    `json:"control_token,omitempty"`
	Courses          map[int64]*CourseSettings `json:"courses"`
}

// DefaultSettings returns the settings used for a fresh install.
func DefaultSettings() *Settings {
	return &Settings{
		ServerURL:        DefaultServerURL,
		DownloadPath:     filepath.Join(home, "WeBeep Sync"),
		AutosyncEnabled:  false,
		AutosyncInterval: Duration(DefaultAutosyncInterval),
		DownloadWorkers:  DefaultDownloadWorkers,
		Language:         "en",
		ControlAddr:      DefaultControlAddr,
		Courses:          make(map[int64]*CourseSettings),
	}
}

func (s *Settings) normalize() {
	if s.ServerURL == "" {
		s.ServerURL = DefaultServerURL
	}
	if s.DownloadPath == "" {
		s.DownloadPath = filepath.Join(home, "WeBeep Sync")
	}
	if s.AutosyncInterval <= 0 {
		s.AutosyncInterval = Duration(DefaultAutosyncInterval)
	}
	if s.DownloadWorkers <= 0 {
		s.DownloadWorkers = DefaultDownloadWorkers
	}
	if s.Language == "" {
		s.Language = "en"
	}
	if s.ControlAddr == "" {
		s.ControlAddr = DefaultControlAddr
	}
	if s.Courses == nil {
		s.Courses = make(map[int64]*CourseSettings)
	}
}

// clone returns a deep copy so callers can't mutate the store's state.
func (s *Settings) clone() *Settings {
	cp := *s
	cp.Courses = make(map[int64]*CourseSettings, len(s.Courses))
	for id, cs := range s.Courses {
		c := *cs
		cp.Courses[id] = &c
	}
	return &cp
}

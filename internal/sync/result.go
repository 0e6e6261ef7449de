package sync

import "time"

// FileError is one failed file transfer within a pass.
type FileError struct {
	CourseID int64  `json:"course_id"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// CourseError marks a course whose listing failed; the course was skipped,
// the pass continued.
type CourseError struct {
	CourseID int64  `json:"course_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// Result is the aggregate outcome of one sync pass.
type Result struct {
	PassID       string        `json:"pass_id"`
	Started      time.Time     `json:"started"`
	Duration     time.Duration `json:"duration"`
	NewFiles     []string      `json:"new_files"`
	Downloaded   int           `json:"downloaded"`
	Deleted      int           `json:"deleted"`
	Bytes        int64         `json:"bytes"`
	FileErrors   []FileError   `json:"file_errors,omitempty"`
	CourseErrors []CourseError `json:"course_errors,omitempty"`
	Canceled     bool          `json:"canceled"`
}

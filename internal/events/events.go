// Package events provides the typed pub/sub surface that the CLI and the
// control plane consume to observe client and sync state.
package events

// Kind discriminates event payloads on the bus.
type Kind string

const (
	KindConnectivity Kind = "connectivity"
	KindLogin        Kind = "login"
	KindUser         Kind = "user"
	KindSyncStart    Kind = "sync.start"
	KindSyncProgress Kind = "sync.progress"
	KindSyncFile     Kind = "sync.file"
	KindSyncCourse   Kind = "sync.course"
	KindSyncDone     Kind = "sync.done"
)

// Event is implemented by every payload published on the bus.
type Event interface {
	EventKind() Kind
}

// Connectivity reports transitions between online and offline.
type Connectivity struct {
	Online bool `json:"online"`
}

func (Connectivity) EventKind() Kind { return KindConnectivity }

// Login reports login/logout transitions.
type Login struct {
	LoggedIn bool `json:"logged_in"`
}

func (Login) EventKind() Kind { return KindLogin }

// UserResolved fires once the site-info call resolves the user's identity.
type UserResolved struct {
	UserID   int64  `json:"user_id"`
	Fullname string `json:"fullname"`
}

func (UserResolved) EventKind() Kind { return KindUser }

// SyncStarted marks the beginning of a sync pass.
type SyncStarted struct {
	PassID string `json:"pass_id"`
}

func (SyncStarted) EventKind() Kind { return KindSyncStart }

// SyncProgress carries byte-level progress for a file transfer in flight.
type SyncProgress struct {
	PassID     string `json:"pass_id"`
	CourseID   int64  `json:"course_id"`
	Path       string `json:"path"`
	Downloaded int64  `json:"downloaded"`
	Total      int64  `json:"total"`
}

func (SyncProgress) EventKind() Kind { return KindSyncProgress }

// SyncFile reports a single finished transfer, successful or not.
type SyncFile struct {
	PassID   string `json:"pass_id"`
	CourseID int64  `json:"course_id"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Error    string `json:"error,omitempty"`
}

func (SyncFile) EventKind() Kind { return KindSyncFile }

// SyncCourse reports completion of one course within a pass.
type SyncCourse struct {
	PassID     string `json:"pass_id"`
	CourseID   int64  `json:"course_id"`
	CourseName string `json:"course_name"`
	Downloaded int    `json:"downloaded"`
	Deleted    int    `json:"deleted"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func (SyncCourse) EventKind() Kind { return KindSyncCourse }

// SyncDone carries the aggregate result of a pass.
type SyncDone struct {
	PassID     string   `json:"pass_id"`
	NewFiles   []string `json:"new_files"`
	Downloaded int      `json:"downloaded"`
	Deleted    int      `json:"deleted"`
	Failed     int      `json:"failed"`
	Bytes      int64    `json:"bytes"`
	DurationMS int64    `json:"duration_ms"`
	Canceled   bool     `json:"canceled"`
}

func (SyncDone) EventKind() Kind { return KindSyncDone }

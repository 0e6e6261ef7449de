package control

import "github.com/frartenzo/webeep-sync/internal/config"

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	LoggedIn  bool   `json:"logged_in"`
	Online    bool   `json:"online"`
	Fullname  string `json:"fullname,omitempty"`
	Syncing   bool   `json:"syncing"`
	Autosync  bool   `json:"autosync"`
}

// CourseView is one course as presented by GET /v1/courses: the remote
// listing merged with the local per-course preferences.
type CourseView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Fullname   string `json:"fullname"`
	ShouldSync bool   `json:"should_sync"`
	CustomName string `json:"custom_name,omitempty"`
}

// CourseUpdateRequest is the body of PUT /v1/courses/:id. Nil fields are
// left unchanged.
type CourseUpdateRequest struct {
	ShouldSync *bool   `json:"should_sync"`
	CustomName *string `json:"custom_name"`
}

// SettingsPatch is the body of PUT /v1/settings. Nil fields are left
// unchanged. The server URL is deliberately not patchable over the wire.
type SettingsPatch struct {
	DownloadPath     *string          `json:"download_path"`
	AutosyncEnabled  *bool            `json:"autosync_enabled"`
	AutosyncInterval *config.Duration `json:"autosync_interval"`
	DownloadWorkers  *int             `json:"download_workers"`
	Language         *string          `json:"language"`
}

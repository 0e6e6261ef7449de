// Package control exposes the local HTTP API that the CLI and any UI use
// to observe and drive the running client.
package control

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frartenzo/webeep-sync/internal/config"
	"github.com/frartenzo/webeep-sync/internal/events"
	"github.com/frartenzo/webeep-sync/internal/moodle"
	websync "github.com/frartenzo/webeep-sync/internal/sync"
	"github.com/frartenzo/webeep-sync/internal/version"
)

// Remote is the slice of the platform client the API consumes.
type Remote interface {
	LoggedIn() bool
	Online() bool
	Fullname() string
	ListCourses(ctx context.Context) ([]moodle.Course, error)
}

// Syncer is the slice of the sync engine the API consumes.
type Syncer interface {
	Sync(ctx context.Context) (*websync.Result, error)
	Stop()
	Syncing() bool
}

// API holds the handler dependencies.
type API struct {
	remote Remote
	engine Syncer
	store  *config.Store
	bus    *events.Bus
}

func NewAPI(remote Remote, engine Syncer, store *config.Store, bus *events.Bus) *API {
	return &API{
		remote: remote,
		engine: engine,
		store:  store,
		bus:    bus,
	}
}

// Status returns the current client state.
func (a *API) Status(c *gin.Context) {
	settings := a.store.Get()
	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		LoggedIn:  a.remote.LoggedIn(),
		Online:    a.remote.Online(),
		Fullname:  a.remote.Fullname(),
		Syncing:   a.engine.Syncing(),
		Autosync:  settings.AutosyncEnabled,
	})
}

// Courses lists the enrolled courses merged with the local preferences.
func (a *API) Courses(c *gin.Context) {
	courses, err := a.remote.ListCourses(c.Request.Context())
	if err != nil {
		a.remoteError(c, err)
		return
	}

	settings := a.store.Get()
	views := make([]*CourseView, 0, len(courses))
	for _, course := range courses {
		view := &CourseView{
			ID:       course.ID,
			Name:     course.Name,
			Fullname: course.Fullname,
		}
		if cs := settings.Courses[course.ID]; cs != nil {
			view.ShouldSync = cs.ShouldSync
			view.CustomName = cs.CustomName
		}
		views = append(views, view)
	}
	c.PureJSON(http.StatusOK, views)
}

// UpdateCourse changes the per-course sync preferences.
func (a *API) UpdateCourse(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}

	var req CourseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = a.store.Update(func(s *config.Settings) {
		cs, ok := s.Courses[courseID]
		if !ok {
			cs = &config.CourseSettings{}
			s.Courses[courseID] = cs
		}
		if req.ShouldSync != nil {
			cs.ShouldSync = *req.ShouldSync
		}
		if req.CustomName != nil {
			cs.CustomName = *req.CustomName
		}
	})
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cs := a.store.Get().Courses[courseID]
	c.PureJSON(http.StatusOK, &CourseView{
		ID:         courseID,
		ShouldSync: cs.ShouldSync,
		CustomName: cs.CustomName,
	})
}

// StartSync kicks off a pass in the background. A pass already in flight
// yields 409.
func (a *API) StartSync(c *gin.Context) {
	if a.engine.Syncing() {
		c.PureJSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}

	go func() {
		// detached from the request: the pass outlives the HTTP call,
		// outcomes are reported on the event bus
		_, _ = a.engine.Sync(context.Background())
	}()

	c.PureJSON(http.StatusAccepted, gin.H{"status": "started"})
}

// StopSync cancels the in-flight pass, if any.
func (a *API) StopSync(c *gin.Context) {
	a.engine.Stop()
	c.PureJSON(http.StatusOK, gin.H{"status": "stopping"})
}

// Settings returns the full durable configuration.
func (a *API) Settings(c *gin.Context) {
	c.PureJSON(http.StatusOK, a.store.Get())
}

// UpdateSettings applies a partial settings update and returns the result.
func (a *API) UpdateSettings(c *gin.Context) {
	var patch SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := a.store.Update(func(s *config.Settings) {
		if patch.DownloadPath != nil {
			s.DownloadPath = *patch.DownloadPath
		}
		if patch.AutosyncEnabled != nil {
			s.AutosyncEnabled = *patch.AutosyncEnabled
		}
		if patch.AutosyncInterval != nil {
			s.AutosyncInterval = *patch.AutosyncInterval
		}
		if patch.DownloadWorkers != nil {
			s.DownloadWorkers = *patch.DownloadWorkers
		}
		if patch.Language != nil {
			s.Language = *patch.Language
		}
	})
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.PureJSON(http.StatusOK, a.store.Get())
}

// Events streams bus events to the client as server-sent events, named by
// their kind.
func (a *API) Events(c *gin.Context) {
	sub := a.bus.Subscribe()
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	// push the headers out now so the subscriber is established even when
	// no event fires for a while
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.EventKind()), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// remoteError maps client errors onto HTTP statuses.
func (a *API) remoteError(c *gin.Context, err error) {
	var authErr *moodle.AuthError
	switch {
	case errors.Is(err, moodle.ErrNotAuthenticated), errors.As(err, &authErr):
		c.PureJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case moodle.IsTransient(err):
		c.PureJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.PureJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

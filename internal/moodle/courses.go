package moodle

import (
	"context"
	"regexp"
	"strconv"

	"github.com/frartenzo/webeep-sync/internal/events"
)

var (
	courseNamePrefix = regexp.MustCompile(`^\d+\s*-\s*`)
	courseNameSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// NormalizeCourseName strips the leading "<number> - " prefix and the
// trailing "(...)" suffix from a course display name when present. Names
// matching neither pattern pass through unchanged.
func NormalizeCourseName(name string) string {
	name = courseNamePrefix.ReplaceAllString(name, "")
	return courseNameSuffix.ReplaceAllString(name, "")
}

// UserID resolves and caches the numeric user id via the site-info
// endpoint. The first successful call publishes the resolved display name.
func (c *Client) UserID(ctx context.Context) (int64, error) {
	c.mu.RLock()
	cached := c.userID
	c.mu.RUnlock()
	if cached != 0 {
		return cached, nil
	}

	var si siteInfoResponse
	if err := c.call(ctx, fnSiteInfo, nil, &si); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.userID = si.UserID
	c.fullname = si.Fullname
	c.mu.Unlock()

	c.publish(events.UserResolved{UserID: si.UserID, Fullname: si.Fullname})
	return si.UserID, nil
}

// ListCourses returns the user's enrollments with normalized display
// names. The result is cached in memory; a transient failure returns the
// cached list instead of propagating the error.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return c.cachedCoursesOr(err)
	}

	var wire []wireCourse
	err = c.call(ctx, fnUserCourses, map[string]string{
		"userid": strconv.FormatInt(userID, 10),
	}, &wire)
	if err != nil {
		return c.cachedCoursesOr(err)
	}

	courses := make([]Course, 0, len(wire))
	for _, wc := range wire {
		courses = append(courses, Course{
			ID:       wc.ID,
			Name:     NormalizeCourseName(wc.Fullname),
			Fullname: wc.Fullname,
		})
	}

	c.mu.Lock()
	c.courseCache = courses
	c.mu.Unlock()
	return courses, nil
}

func (c *Client) cachedCoursesOr(err error) ([]Course, error) {
	if !IsTransient(err) {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.courseCache == nil {
		return nil, err
	}
	return c.courseCache, nil
}

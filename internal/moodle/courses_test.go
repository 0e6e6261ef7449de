package moodle

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCourseName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "prefix and suffix",
			in:   "2023 - Systems Programming (SP)",
			want: "Systems Programming",
		},
		{
			name: "prefix only",
			in:   "051234 - Computer Graphics",
			want: "Computer Graphics",
		},
		{
			name: "suffix only",
			in:   "Operating Systems (prof. Rossi)",
			want: "Operating Systems",
		},
		{
			name: "no pattern",
			in:   "Advanced Algorithms",
			want: "Advanced Algorithms",
		},
		{
			name: "parentheses mid-name survive",
			in:   "Logic (and) Reasoning 101",
			want: "Logic (and) Reasoning 101",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCourseName(tt.in))
		})
	}
}

func TestListCoursesNormalizesAndCaches(t *testing.T) {
	var fail atomic.Bool
	handler := wsHandler(t, map[string]func(*http.Request) string{
		fnSiteInfo: func(r *http.Request) string {
			return `{"userid":7,"fullname":"Ada Lovelace"}`
		},
		fnUserCourses: func(r *http.Request) string {
			require.Equal(t, "7", r.PostFormValue("userid"))
			return `[
				{"id":11,"fullname":"2023 - Systems Programming (SP)","shortname":"SP"},
				{"id":12,"fullname":"Advanced Algorithms","shortname":"AA"}
			]`
		},
		fnCourseContents: func(r *http.Request) string {
			return `[]`
		},
	})
	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		handler.ServeHTTP(w, r)
	})

	client, _, _ := newTestClient(t, wrapped)

	courses, err := client.ListCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, Course{ID: 11, Name: "Systems Programming", Fullname: "2023 - Systems Programming (SP)"}, courses[0])
	assert.Equal(t, "Advanced Algorithms", courses[1].Name)

	// outage: short-circuited callers get the cached list, not an error
	fail.Store(true)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		client.ListFiles(context.Background(), 99) // owns the reconnect loop
	}()
	require.Eventually(t, func() bool { return !client.Online() }, 2*time.Second, 5*time.Millisecond)

	cached, err := client.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, courses, cached)

	fail.Store(false)
	<-loopDone
}

func TestListCoursesPropagatesAuthErrorWithoutCache(t *testing.T) {
	handler := wsHandler(t, map[string]func(*http.Request) string{
		fnSiteInfo: func(r *http.Request) string {
			return `{"errorcode":"invalidtoken","message":"Invalid token"}`
		},
	})
	client, _, _ := newTestClient(t, handler)

	_, err := client.ListCourses(context.Background())
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

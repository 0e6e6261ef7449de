package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frartenzo/webeep-sync/internal/moodle"
)

func remoteFile(dir, name string, size int64, mtime int64) *moodle.FileInfo {
	return &moodle.FileInfo{
		Filename:   name,
		Filepath:   dir,
		Filesize:   size,
		URL:        "https://example.com/" + name,
		ModifiedAt: time.Unix(mtime, 0).UTC(),
	}
}

func writeLocal(t *testing.T, courseDir, rel string) {
	t.Helper()
	p := filepath.Join(courseDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("content"), 0o644))
}

func TestDiffCourseNewFile(t *testing.T) {
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}

	plan := diffCourse(course, courseDir,
		[]*moodle.FileInfo{remoteFile("Lecture 1", "slides.pdf", 10, 100)},
		nil)

	require.Len(t, plan.downloads, 1)
	assert.Empty(t, plan.deletions)
	assert.Equal(t, "Lecture 1/slides.pdf", plan.downloads[0].relPath)
	assert.Equal(t, filepath.Join(courseDir, "Lecture 1", "slides.pdf"), plan.downloads[0].finalPath)
}

func TestDiffCourseUnchanged(t *testing.T) {
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}
	writeLocal(t, courseDir, "Lecture 1/slides.pdf")

	plan := diffCourse(course, courseDir,
		[]*moodle.FileInfo{remoteFile("Lecture 1", "slides.pdf", 10, 100)},
		[]*Record{{CourseID: 1, Filepath: "Lecture 1", Filename: "slides.pdf", Size: 10, ModifiedAt: 100}})

	assert.Empty(t, plan.downloads)
	assert.Empty(t, plan.deletions)
	assert.Equal(t, 1, plan.unchanged)
}

func TestDiffCourseChangedFile(t *testing.T) {
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}
	writeLocal(t, courseDir, "Lecture 1/slides.pdf")

	tests := []struct {
		name   string
		remote *moodle.FileInfo
	}{
		{"size differs", remoteFile("Lecture 1", "slides.pdf", 99, 100)},
		{"mtime differs", remoteFile("Lecture 1", "slides.pdf", 10, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := diffCourse(course, courseDir,
				[]*moodle.FileInfo{tt.remote},
				[]*Record{{CourseID: 1, Filepath: "Lecture 1", Filename: "slides.pdf", Size: 10, ModifiedAt: 100}})
			assert.Len(t, plan.downloads, 1)
			assert.Empty(t, plan.deletions)
		})
	}
}

func TestDiffCourseLocalCopyVanished(t *testing.T) {
	// record matches the remote metadata but the file is gone from disk,
	// so it gets downloaded again
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}

	plan := diffCourse(course, courseDir,
		[]*moodle.FileInfo{remoteFile("Lecture 1", "slides.pdf", 10, 100)},
		[]*Record{{CourseID: 1, Filepath: "Lecture 1", Filename: "slides.pdf", Size: 10, ModifiedAt: 100}})

	assert.Len(t, plan.downloads, 1)
}

func TestDiffCourseDeletion(t *testing.T) {
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}

	plan := diffCourse(course, courseDir,
		nil,
		[]*Record{{CourseID: 1, Filepath: "old", Filename: "gone.pdf", Size: 10, ModifiedAt: 100}})

	assert.Empty(t, plan.downloads)
	require.Len(t, plan.deletions, 1)
	assert.Equal(t, filepath.Join(courseDir, "old", "gone.pdf"), plan.deletions[0].localPath)
}

func TestDiffCourseSanitizesSegments(t *testing.T) {
	courseDir := t.TempDir()
	course := moodle.Course{ID: 1, Name: "Algorithms"}

	plan := diffCourse(course, courseDir,
		[]*moodle.FileInfo{remoteFile("week: 1", `report?.pdf`, 10, 100)},
		nil)

	require.Len(t, plan.downloads, 1)
	assert.Equal(t, filepath.Join(courseDir, "week_ 1", "report_.pdf"), plan.downloads[0].finalPath)
	// the reporting path keeps the remote identity untouched
	assert.Equal(t, "week: 1/report?.pdf", plan.downloads[0].relPath)
}

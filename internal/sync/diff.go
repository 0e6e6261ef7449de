package sync

import (
	"path"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/frartenzo/webeep-sync/internal/moodle"
	"github.com/frartenzo/webeep-sync/internal/utils"
)

// downloadJob is one file scheduled for transfer.
type downloadJob struct {
	course    moodle.Course
	courseDir string
	file      *moodle.FileInfo
	relPath   string // course-relative, for reporting
	finalPath string // absolute target on disk
}

// deletion is one local file whose remote counterpart disappeared.
type deletion struct {
	record    *Record
	localPath string
}

// coursePlan is the outcome of diffing one course against the index.
type coursePlan struct {
	course    moodle.Course
	downloads []*downloadJob
	deletions []*deletion
	unchanged int
}

// diffCourse compares the remote listing with the index records for one
// course. A file is downloaded when it has no record, its size or modified
// time differ, or the local copy vanished. Records with no remote
// counterpart are scheduled for deletion together with their file.
func diffCourse(course moodle.Course, courseDir string, remote []*moodle.FileInfo, records []*Record) *coursePlan {
	plan := &coursePlan{course: course}

	byKey := make(map[string]*Record, len(records))
	recordKeys := mapset.NewThreadUnsafeSet[string]()
	for _, record := range records {
		byKey[record.Key()] = record
		recordKeys.Add(record.Key())
	}

	remoteKeys := mapset.NewThreadUnsafeSet[string]()
	for _, file := range remote {
		key := path.Join(file.Filepath, file.Filename)
		remoteKeys.Add(key)

		finalPath := localPath(courseDir, file.Filepath, file.Filename)
		record, known := byKey[key]
		switch {
		case !known,
			record.Size != file.Filesize,
			record.ModifiedAt != file.ModifiedAt.Unix(),
			!utils.FileExists(finalPath):
			plan.downloads = append(plan.downloads, &downloadJob{
				course:    course,
				courseDir: courseDir,
				file:      file,
				relPath:   key,
				finalPath: finalPath,
			})
		default:
			plan.unchanged++
		}
	}

	for key := range recordKeys.Difference(remoteKeys).Iter() {
		record := byKey[key]
		plan.deletions = append(plan.deletions, &deletion{
			record:    record,
			localPath: localPath(courseDir, record.Filepath, record.Filename),
		})
	}

	return plan
}

// localPath maps a course-relative file identity to its absolute location:
// <courseDir>/<filepath>/<filename>, each remote segment sanitized.
func localPath(courseDir, relDir, name string) string {
	parts := []string{courseDir}
	for _, seg := range strings.Split(relDir, "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, utils.SanitizeSegment(seg))
	}
	parts = append(parts, utils.SanitizeSegment(name))
	return filepath.Join(parts...)
}

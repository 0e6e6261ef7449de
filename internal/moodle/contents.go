package moodle

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/frartenzo/webeep-sync/internal/utils"
)

// ListFiles returns the downloadable files under the course's Materials
// section, flattened to one FileInfo per "file"-kind content entry. A
// course without a Materials section yields an empty list. Results are
// served from a short-lived cache between passes.
func (c *Client) ListFiles(ctx context.Context, courseID int64) ([]*FileInfo, error) {
	if cached, ok := c.contents.Get(courseID); ok {
		return cached, nil
	}

	var sections []wireSection
	err := c.call(ctx, fnCourseContents, map[string]string{
		"courseid": strconv.FormatInt(courseID, 10),
	}, &sections)
	if err != nil {
		return nil, err
	}

	files := flattenMaterials(sections)
	c.contents.Add(courseID, files)
	return files, nil
}

// InvalidateContents drops the cached course listings so the next pass
// sees a fresh remote state.
func (c *Client) InvalidateContents() {
	c.contents.Purge()
}

func flattenMaterials(sections []wireSection) []*FileInfo {
	files := make([]*FileInfo, 0)
	for _, section := range sections {
		if !strings.EqualFold(strings.TrimSpace(section.Name), materialsSection) {
			continue
		}
		for _, module := range section.Modules {
			moduleDir := utils.SanitizeSegment(module.Name)
			for _, content := range module.Contents {
				if content.Type != contentKindFile {
					continue
				}
				files = append(files, &FileInfo{
					Filename:   content.Filename,
					Filepath:   path.Join(moduleDir, strings.Trim(content.Filepath, "/")),
					Filesize:   content.Filesize,
					URL:        content.FileURL,
					CreatedAt:  time.Unix(content.TimeCreated, 0).UTC(),
					ModifiedAt: time.Unix(content.TimeModified, 0).UTC(),
				})
			}
		}
	}
	return files
}

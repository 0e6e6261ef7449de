package moodle

import "time"

const (
	wsRestEndpoint = "/webservice/rest/server.php"

	fnSiteInfo       = "core_webservice_get_site_info"
	fnUserCourses    = "core_enrol_get_users_courses"
	fnCourseContents = "core_course_get_contents"

	// The section whose modules hold the downloadable materials. Other
	// sections (announcements, forums) are not mirrored.
	materialsSection = "Materials"

	contentKindFile = "file"
)

// Course is one enrollment, with the display name already normalized.
type Course struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Fullname string `json:"fullname"`
}

// FileInfo describes one downloadable resource under a course's Materials
// section. Filepath is relative and namespaced under the owning module's
// name. FileInfo values are ephemeral; they are rebuilt on every listing.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Filepath   string    `json:"filepath"`
	Filesize   int64     `json:"filesize"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// wire types

type siteInfoResponse struct {
	UserID    int64  `json:"userid"`
	Fullname  string `json:"fullname"`
	SiteName  string `json:"sitename"`
	Username  string `json:"username"`
	UserLang  string `json:"lang"`
	SiteURL   string `json:"siteurl"`
	Release   string `json:"release"`
	FirstName string `json:"firstname"`
}

type wireCourse struct {
	ID        int64  `json:"id"`
	Fullname  string `json:"fullname"`
	ShortName string `json:"shortname"`
}

type wireSection struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Modules []wireModule `json:"modules"`
}

type wireModule struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	ModName  string        `json:"modname"`
	Contents []wireContent `json:"contents"`
}

type wireContent struct {
	Type         string `json:"type"`
	Filename     string `json:"filename"`
	Filepath     string `json:"filepath"`
	Filesize     int64  `json:"filesize"`
	FileURL      string `json:"fileurl"`
	TimeCreated  int64  `json:"timecreated"`
	TimeModified int64  `json:"timemodified"`
}

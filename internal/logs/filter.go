package logs

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter selects log lines by camera and free text. It understands both the
// console and the JSON log formats.
type Filter struct {
	camera   *regexp.Regexp
	contains string
}

// NewFilter builds a filter. cameraID < 0 matches every camera and an empty
// contains matches every line.
func NewFilter(cameraID int, contains string) *Filter {
	f := &Filter{contains: strings.ToLower(strings.TrimSpace(contains))}
	if cameraID >= 0 {
		f.camera = regexp.MustCompile(fmt.Sprintf(`(\bCamera %d\b)|("camera_id":%d[,}])|(\bcamera_id=%d\b)`, cameraID, cameraID, cameraID))
	}
	return f
}

// Match reports whether line passes the filter. A nil filter matches all.
func (f *Filter) Match(line string) bool {
	if f == nil {
		return true
	}
	if f.camera != nil && !f.camera.MatchString(line) {
		return false
	}
	if f.contains != "" && !strings.Contains(strings.ToLower(line), f.contains) {
		return false
	}
	return true
}

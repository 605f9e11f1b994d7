package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CourseAttendance summarizes attendance for one course in a term.
type CourseAttendance struct {
	CourseCode string  `json:"courseCode"`
	CourseName string  `json:"courseName"`
	Held       int     `json:"held"`
	Attended   int     `json:"attended"`
	Percent    float64 `json:"percent"`
}

// Attendance fetches per-course attendance records. An empty term means the
// current term.
func (c *Client) Attendance(ctx context.Context, term string) ([]CourseAttendance, error) {
	path := "/v1/attendance"
	if term != "" {
		path += "?term=" + url.QueryEscape(term)
	}
	out, err := call[[]CourseAttendance](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("attendance: %w", err)
	}
	return out, nil
}

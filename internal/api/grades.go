package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GradeComponent is one assessed part of a course grade.
type GradeComponent struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// CourseGrade is the grading result for one course.
type CourseGrade struct {
	CourseCode string           `json:"courseCode"`
	CourseName string           `json:"courseName"`
	Components []GradeComponent `json:"components"`
	Letter     string           `json:"letter"`
}

// Grades fetches course grades. An empty term means the current term.
func (c *Client) Grades(ctx context.Context, term string) ([]CourseGrade, error) {
	path := "/v1/grades"
	if term != "" {
		path += "?term=" + url.QueryEscape(term)
	}
	out, err := call[[]CourseGrade](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("grades: %w", err)
	}
	return out, nil
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// TimetableSlot is one scheduled class meeting.
type TimetableSlot struct {
	Day        string `json:"day"`
	Start      string `json:"start"`
	End        string `json:"end"`
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	Room       string `json:"room"`
	Teacher    string `json:"teacher"`
}

// Timetable fetches the schedule for the week containing weekOf
// (YYYY-MM-DD). An empty weekOf means the current week.
func (c *Client) Timetable(ctx context.Context, weekOf string) ([]TimetableSlot, error) {
	path := "/v1/timetable"
	if weekOf != "" {
		path += "?weekOf=" + url.QueryEscape(weekOf)
	}
	out, err := call[[]TimetableSlot](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("timetable: %w", err)
	}
	return out, nil
}

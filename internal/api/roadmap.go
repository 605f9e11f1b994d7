package api

import (
	"context"
	"fmt"
	"net/http"
)

// RoadmapNode is one requirement in the student's program roadmap.
type RoadmapNode struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Credits       int      `json:"credits"`
	Completed     bool     `json:"completed"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// Roadmap fetches the program requirement graph with completion state.
func (c *Client) Roadmap(ctx context.Context) ([]RoadmapNode, error) {
	out, err := call[[]RoadmapNode](ctx, c, http.MethodGet, "/v1/roadmap", nil)
	if err != nil {
		return nil, fmt.Errorf("roadmap: %w", err)
	}
	return out, nil
}

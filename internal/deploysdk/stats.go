package deploysdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

const (
	v1ProjectStats = "/projects/{projectId}/stats"
)

type StatsAPI struct {
	client *req.Client
}

func newStatsAPI(client *req.Client) *StatsAPI {
	return &StatsAPI{
		client: client,
	}
}

// Open opens a single metering stream. It ends whenever the server drops
// the connection.
func (s *StatsAPI) Open(ctx context.Context, projectID string) (*Stream[StatsRecord], error) {
	if projectID == "" {
		return nil, ErrNoProject
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetHeader(HeaderAccept, contentTypeNDJSON).
		SetRetryCount(0).
		DisableAutoReadResponse().
		Post(v1ProjectStats)
	if err != nil {
		return nil, fmt.Errorf("http request error: project stats: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleStreamError(resp, "project stats")
	}

	return NewStream[StatsRecord](resp.Body), nil
}

// Subscribe returns a metering feed that reconnects for as long as the
// caller keeps reading
func (s *StatsAPI) Subscribe(projectID string) *ResilientStream[StatsRecord] {
	return NewResilientStream("stats", func(ctx context.Context) (*Stream[StatsRecord], error) {
		return s.Open(ctx, projectID)
	})
}

package deploysdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Project = "/projects/{projectId}"
)

type ProjectsAPI struct {
	client *req.Client
}

func newProjectsAPI(client *req.Client) *ProjectsAPI {
	return &ProjectsAPI{
		client: client,
	}
}

// Get fetches a project by id or name
func (p *ProjectsAPI) Get(ctx context.Context, projectID string) (project *Project, err error) {
	if projectID == "" {
		return nil, ErrNoProject
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetRetryCount(2).
		SetSuccessResult(&project).
		Get(v1Project)

	if err := handleAPIError(resp, err, "project get"); err != nil {
		return nil, err
	}

	return project, nil
}

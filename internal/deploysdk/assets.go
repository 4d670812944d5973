package deploysdk

import (
	"context"

	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/imroc/req/v3"
)

const (
	v1AssetsNegotiate = "/projects/{projectId}/assets/negotiate"
)

type AssetsAPI struct {
	client *req.Client
}

func newAssetsAPI(client *req.Client) *AssetsAPI {
	return &AssetsAPI{
		client: client,
	}
}

// Negotiate posts the manifest and returns the blob hashes the server does
// not have yet, in the order the server wants them uploaded.
func (a *AssetsAPI) Negotiate(ctx context.Context, projectID string, m *manifest.Manifest) (needed []string, err error) {
	if projectID == "" {
		return nil, ErrNoProject
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetBody(m).
		SetSuccessResult(&needed).
		Post(v1AssetsNegotiate)

	if err := handleAPIError(resp, err, "assets negotiate"); err != nil {
		return nil, err
	}

	if needed == nil {
		needed = []string{}
	}
	return needed, nil
}

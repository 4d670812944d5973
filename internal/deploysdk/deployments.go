package deploysdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

const (
	v1DeploymentWithAssets = "/projects/{projectId}/deployment_with_assets"
	v1DeploymentRedeploy   = "/v1/deployments/{deploymentId}/redeploy"
	v1Deployment           = "/v1/deployments/{deploymentId}"

	formFieldRequest = "request"
	formFieldFile    = "file"
)

type DeploymentsAPI struct {
	client *req.Client
}

func newDeploymentsAPI(client *req.Client) *DeploymentsAPI {
	return &DeploymentsAPI{
		client: client,
	}
}

// CreateWithAssets starts a deployment. The request JSON and the file
// contents (one part per negotiated hash, in negotiated order) go out as a
// single multipart body. On success the returned stream yields the
// deployment progress; the caller must close it.
//
// Deployments are never retried.
func (d *DeploymentsAPI) CreateWithAssets(ctx context.Context, projectID string, request *DeployRequest, files [][]byte) (*ProgressStream, error) {
	if projectID == "" {
		return nil, ErrNoProject
	}

	body, err := jsonMarshal(request)
	if err != nil {
		return nil, fmt.Errorf("deployment create: encode request: %w", err)
	}

	r := d.client.R().
		SetContext(ctx).
		SetPathParam("projectId", projectID).
		SetHeader(HeaderAccept, contentTypeNDJSON).
		SetRetryCount(0).
		DisableAutoReadResponse().
		EnableForceMultipart().
		SetFormData(map[string]string{formFieldRequest: string(body)})

	for _, file := range files {
		r.SetFileBytes(formFieldFile, "blob", file)
	}

	resp, err := r.Post(v1DeploymentWithAssets)
	if err != nil {
		return nil, fmt.Errorf("http request error: deployment create: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleStreamError(resp, "deployment create")
	}

	return NewStream[ProgressEvent](resp.Body), nil
}

// Redeploy re-creates deploymentID with params applied and returns the new
// deployment
func (d *DeploymentsAPI) Redeploy(ctx context.Context, deploymentID string, params *RedeployParams) (deployment *Deployment, err error) {
	if deploymentID == "" {
		return nil, ErrNoDeployment
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("deploymentId", deploymentID).
		SetQueryParam("internal", "true").
		SetRetryCount(0).
		SetBody(params).
		SetSuccessResult(&deployment).
		Post(v1DeploymentRedeploy)

	if err := handleAPIError(resp, err, "deployment redeploy"); err != nil {
		return nil, err
	}

	return deployment, nil
}

// Delete removes a deployment
func (d *DeploymentsAPI) Delete(ctx context.Context, deploymentID string) error {
	if deploymentID == "" {
		return ErrNoDeployment
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("deploymentId", deploymentID).
		SetRetryCount(0).
		Delete(v1Deployment)

	return handleAPIError(resp, err, "deployment delete")
}

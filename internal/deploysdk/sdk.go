package deploysdk

import (
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
)

// DeploySDK is the client for the deploy API
type DeploySDK struct {
	client      *req.Client
	baseURL     string
	Projects    *ProjectsAPI
	Assets      *AssetsAPI
	Deployments *DeploymentsAPI
	Stats       *StatsAPI
}

// New creates a new DeploySDK client
func New(config *Config) (*DeploySDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(config.BaseURL).
		SetUserAgent(UserAgent).
		SetCommonBearerAuthToken(config.Token).
		SetCommonHeader(HeaderAccept, contentTypeJSON).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		// streams stay open for as long as a deployment or a monitoring
		// session lasts; deadlines come from the request context instead
		SetTimeout(0).
		OnBeforeRequest(func(c *req.Client, r *req.Request) error {
			r.SetHeader(HeaderRequestID, uuid.NewString())
			return nil
		})

	return &DeploySDK{
		client:      client,
		baseURL:     config.BaseURL,
		Projects:    newProjectsAPI(client),
		Assets:      newAssetsAPI(client),
		Deployments: newDeploymentsAPI(client),
		Stats:       newStatsAPI(client),
	}, nil
}

// BaseURL returns the API endpoint this client talks to
func (s *DeploySDK) BaseURL() string {
	return s.baseURL
}

// Close releases idle connections
func (s *DeploySDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}

package deploysdk

import (
	"time"

	"github.com/deployctl/deployctl/internal/manifest"
)

// DeployRequest is the JSON carried in the "request" part of a deployment
type DeployRequest struct {
	URL          string             `json:"url"`
	ImportMapURL *string            `json:"importMapUrl"`
	Production   bool               `json:"production"`
	Manifest     *manifest.Manifest `json:"manifest,omitempty"`
}

type DomainMapping struct {
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Deployment struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	Description    string          `json:"description,omitempty"`
	DomainMappings []DomainMapping `json:"domainMappings"`
	EnvVars        []string        `json:"envVars"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Domains returns the mapped domain names in server order
func (d *Deployment) Domains() []string {
	domains := make([]string, 0, len(d.DomainMappings))
	for _, m := range d.DomainMappings {
		domains = append(domains, m.Domain)
	}
	return domains
}

// RedeployParams are sent when a deployment is re-created with new settings
type RedeployParams struct {
	EnvVars    map[string]string `json:"envVars,omitempty"`
	Production *bool             `json:"production,omitempty"`
}

// ===================================================================================================

// ProgressType tags the events of a deployment progress stream
type ProgressType string

const (
	ProgressStaticFile     ProgressType = "staticFile"
	ProgressLoad           ProgressType = "load"
	ProgressUploadComplete ProgressType = "uploadComplete"
	ProgressSuccess        ProgressType = "success"
	ProgressError          ProgressType = "error"
)

// ProgressEvent is one line of a deployment progress stream. The fields in
// use depend on Type.
type ProgressEvent struct {
	Type ProgressType `json:"type"`

	// staticFile
	CurrentBytes int64 `json:"currentBytes,omitempty"`
	TotalBytes   int64 `json:"totalBytes,omitempty"`

	// load
	URL   string `json:"url,omitempty"`
	Seen  int64  `json:"seen,omitempty"`
	Total int64  `json:"total,omitempty"`

	// error
	Code string `json:"code,omitempty"`
	Ctx  string `json:"ctx,omitempty"`

	// success; the deployment is inlined in the event
	Deployment *Deployment `json:"-"`
}

func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	type event ProgressEvent
	var raw event
	if err := jsonUnmarshal(data, &raw); err != nil {
		return err
	}
	*e = ProgressEvent(raw)

	if e.Type == ProgressSuccess {
		var deployment Deployment
		if err := jsonUnmarshal(data, &deployment); err != nil {
			return err
		}
		e.Deployment = &deployment
	}

	return nil
}

// IsTerminal reports whether no further events follow e
func (e *ProgressEvent) IsTerminal() bool {
	return e.Type == ProgressSuccess || e.Type == ProgressError
}

// ProgressStream is the body of a deployment request
type ProgressStream = Stream[ProgressEvent]

package deploysdk

import "time"

// Project is a deploy target
type Project struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Type                    string    `json:"type"`
	HasProductionDeployment bool      `json:"hasProductionDeployment"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

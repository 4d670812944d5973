package deploy

import (
	"errors"
	"fmt"
)

var (
	ErrNoEntrypoint = errors.New("deploy: entrypoint missing")
	ErrStreamEnded  = errors.New("deploy: progress stream ended before the deployment finished")
)

// DeploymentError is reported by the server when a deployment fails
type DeploymentError struct {
	Code string
	Ctx  string
}

func (e *DeploymentError) Error() string {
	if e.Ctx == "" {
		return fmt.Sprintf("deployment failed: %s", e.Code)
	}
	return fmt.Sprintf("deployment failed: %s: %s", e.Code, e.Ctx)
}

// MissingAssetError means the server asked for a blob that no local file has
type MissingAssetError struct {
	Hash string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("deploy: no local file for requested asset %s", e.Hash)
}

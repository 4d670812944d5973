package deploysdk

import (
	"net/url"
)

const (
	DefaultBaseURL = "https://dash.deno.com/api"
)

// Config is the configuration for the DeploySDK
type Config struct {
	BaseURL string // BaseURL is required
	Token   string // Token is required
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}

	if c.Token == "" {
		return ErrNoToken
	}

	return nil
}

package deploysdk

import (
	"github.com/deployctl/deployctl/internal/version"
)

const (
	HeaderUserAgent     = "User-Agent"
	HeaderAccept        = "Accept"
	HeaderRequestID     = "x-request-id"
	HeaderDenoRay       = "x-deno-ray"
	HeaderAuthorization = "Authorization"

	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

var UserAgent = version.UserAgent()

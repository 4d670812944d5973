package apitest

import (
	"github.com/goccy/go-json"
)

// StaticFileEvent renders a staticFile progress line
func StaticFileEvent(current, total int64) string {
	return line(map[string]any{"type": "staticFile", "currentBytes": current, "totalBytes": total})
}

// LoadEvent renders a load progress line
func LoadEvent(url string, seen, total int64) string {
	return line(map[string]any{"type": "load", "url": url, "seen": seen, "total": total})
}

// UploadCompleteEvent renders an uploadComplete progress line
func UploadCompleteEvent() string {
	return line(map[string]any{"type": "uploadComplete"})
}

// SuccessEvent renders a success line carrying a deployment
func SuccessEvent(id, projectID string, domains ...string) string {
	event := deployment(id, projectID, []string{}, domains...)
	event["type"] = "success"
	return line(event)
}

// ErrorEvent renders a terminal error line
func ErrorEvent(code, ctx string) string {
	return line(map[string]any{"type": "error", "code": code, "ctx": ctx})
}

// StatsLine renders one metering sample
func StatsLine(isolateID, region, deploymentID string, requestsPerMinute float64) string {
	return line(map[string]any{
		"id":                    isolateID,
		"region":                region,
		"deploymentId":          deploymentID,
		"uptime":                60,
		"requestsPerMinute":     requestsPerMinute,
		"cpuTimePerMinute":      12.5,
		"rssBytes":              32 << 20,
		"ingressBytesPerMinute": 2048,
		"egressBytesPerMinute":  4096,
	})
}

func deployment(id, projectID string, envVars []string, domains ...string) map[string]any {
	mappings := make([]map[string]any, 0, len(domains))
	for _, d := range domains {
		mappings = append(mappings, map[string]any{
			"domain":    d,
			"createdAt": "2024-01-01T00:00:00Z",
			"updatedAt": "2024-01-01T00:00:00Z",
		})
	}
	return map[string]any{
		"id":             id,
		"projectId":      projectID,
		"domainMappings": mappings,
		"envVars":        envVars,
		"createdAt":      "2024-01-01T00:00:00Z",
		"updatedAt":      "2024-01-01T00:00:00Z",
	}
}

func line(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

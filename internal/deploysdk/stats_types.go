package deploysdk

// StatsRecord is one metering sample of an isolate serving a project
type StatsRecord struct {
	ID                    string  `json:"id"`
	Region                string  `json:"region"`
	DeploymentID          string  `json:"deploymentId"`
	Uptime                int64   `json:"uptime"`
	RequestsPerMinute     float64 `json:"requestsPerMinute"`
	CPUTimePerMinute      float64 `json:"cpuTimePerMinute"`
	RSSBytes              uint64  `json:"rssBytes"`
	IngressBytesPerMinute uint64  `json:"ingressBytesPerMinute"`
	EgressBytesPerMinute  uint64  `json:"egressBytesPerMinute"`
}

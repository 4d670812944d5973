// Package apitest provides an in-process fake of the deploy API for tests.
package apitest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	// Token is the only bearer token the fake accepts
	Token = "apitest-token"

	headerDenoRay   = "x-deno-ray"
	headerRequestID = "x-request-id"
)

// Route names a fake endpoint for failure injection
type Route string

const (
	RouteProject   Route = "project"
	RouteNegotiate Route = "negotiate"
	RouteDeploy    Route = "deploy"
	RouteRedeploy  Route = "redeploy"
	RouteDelete    Route = "delete"
	RouteStats     Route = "stats"
)

// Failure is a scripted error response
type Failure struct {
	Status  int
	Code    string
	Message string
}

// Upload is one received deployment_with_assets request
type Upload struct {
	ProjectID string
	Request   map[string]any
	Files     [][]byte
}

// Redeploy is one received redeploy request
type Redeploy struct {
	DeploymentID string
	Internal     string
	EnvVars      map[string]string
}

// Request is the metadata of any received request
type Request struct {
	Method    string
	Path      string
	RequestID string
	UserAgent string
}

// StatsSession scripts one stats connection: the lines are written, then the
// connection is closed, or kept open until the client leaves when Hold is set.
type StatsSession struct {
	Lines []string
	Hold  bool
}

// Server is a fake deploy API backed by gin
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	known           mapset.Set[string]
	projects        map[string]string
	failures        map[Route]Failure
	deployEvents    []string
	redeployDomains []string
	statsSessions   []StatsSession
	statsConnects   int
	negotiations    int
	uploads         []Upload
	redeploys       []Redeploy
	deleted         []string
	requests        []Request
	stop            chan struct{}
	stopOnce        sync.Once
}

// New starts a fake server that is shut down when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		known:    mapset.NewSet[string](),
		projects: make(map[string]string),
		failures: make(map[Route]Failure),
		stop:     make(chan struct{}),
	}

	r := gin.New()
	r.Use(s.record, s.auth)
	r.GET("/projects/:projectId", s.failable(RouteProject, s.handleProject))
	r.POST("/projects/:projectId/assets/negotiate", s.failable(RouteNegotiate, s.handleNegotiate))
	r.POST("/projects/:projectId/deployment_with_assets", s.failable(RouteDeploy, s.handleDeploy))
	r.POST("/projects/:projectId/stats", s.failable(RouteStats, s.handleStats))
	r.POST("/v1/deployments/:deploymentId/redeploy", s.failable(RouteRedeploy, s.handleRedeploy))
	r.DELETE("/v1/deployments/:deploymentId", s.failable(RouteDelete, s.handleDelete))

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Close releases held streams and stops the server
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.Server.Close()
	})
}

// AddProject registers a project id the fake knows about
func (s *Server) AddProject(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[id] = name
}

// AddKnownBlobs marks hashes as already stored
func (s *Server) AddKnownBlobs(hashes ...string) {
	s.known.Append(hashes...)
}

// KnownBlobs returns the stored blob hashes, sorted
func (s *Server) KnownBlobs() []string {
	hashes := s.known.ToSlice()
	sort.Strings(hashes)
	return hashes
}

// SetDeployEvents scripts the NDJSON lines a deployment streams back.
// Without a script a successful deployment is reported.
func (s *Server) SetDeployEvents(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployEvents = lines
}

// SetRedeployDomains sets the domains a redeployed deployment is served on
func (s *Server) SetRedeployDomains(domains ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redeployDomains = domains
}

// SetStatsSessions scripts successive stats connections. Connections past
// the script are refused.
func (s *Server) SetStatsSessions(sessions ...StatsSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsSessions = sessions
}

// Fail makes every request to route answer with f
func (s *Server) Fail(route Route, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = f
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

func (s *Server) Redeploys() []Redeploy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Redeploy(nil), s.redeploys...)
}

func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) Negotiations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiations
}

func (s *Server) StatsConnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsConnects
}

// ===================================================================================================

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		RequestID: c.GetHeader(headerRequestID),
		UserAgent: c.GetHeader("User-Agent"),
	})
	s.mu.Unlock()

	c.Header(headerDenoRay, uuid.NewString())
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "The authorization token is not valid"})
		return
	}
	c.Next()
}

func (s *Server) failable(route Route, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		f, ok := s.failures[route]
		s.mu.Unlock()
		if ok {
			c.AbortWithStatusJSON(f.Status, gin.H{"code": f.Code, "message": f.Message})
			return
		}
		h(c)
	}
}

func (s *Server) handleProject(c *gin.Context) {
	id := c.Param("projectId")

	s.mu.Lock()
	name, ok := s.projects[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "projectNotFound", "message": "The requested project does not exist."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": name, "type": "git", "hasProductionDeployment": false})
}

func (s *Server) handleNegotiate(c *gin.Context) {
	var body struct {
		Entries map[string]any `json:"entries"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalidManifest", "message": err.Error()})
		return
	}

	hashes := mapset.NewSet[string]()
	collectHashes(body.Entries, hashes)

	needed := hashes.Difference(s.known).ToSlice()
	sort.Strings(needed)

	s.mu.Lock()
	s.negotiations++
	s.mu.Unlock()

	c.JSON(http.StatusOK, needed)
}

func collectHashes(entries map[string]any, into mapset.Set[string]) {
	for _, v := range entries {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		switch entry["kind"] {
		case "file":
			if hash, ok := entry["gitSha1"].(string); ok {
				into.Add(hash)
			}
		case "directory":
			if children, ok := entry["entries"].(map[string]any); ok {
				collectHashes(children, into)
			}
		}
	}
}

func (s *Server) handleDeploy(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": err.Error()})
		return
	}

	values := form.Value["request"]
	if len(values) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": "missing request part"})
		return
	}

	upload := Upload{ProjectID: c.Param("projectId")}
	if err := json.Unmarshal([]byte(values[0]), &upload.Request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": err.Error()})
		return
	}

	for _, fh := range form.File["file"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": err.Error()})
			return
		}
		upload.Files = append(upload.Files, data)
		s.known.Add(manifest.BlobHash(data))
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	events := s.deployEvents
	s.mu.Unlock()

	if events == nil {
		var total int64
		for _, f := range upload.Files {
			total += int64(len(f))
		}
		events = []string{
			StaticFileEvent(total, total),
			LoadEvent("file:///src/main.ts", 1, 1),
			UploadCompleteEvent(),
			SuccessEvent("dpl-"+upload.ProjectID, upload.ProjectID, upload.ProjectID+".deno.dev"),
		}
	}

	s.streamLines(c, events, false)
}

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	n := s.statsConnects
	s.statsConnects++
	var session *StatsSession
	if n < len(s.statsSessions) {
		session = &s.statsSessions[n]
	}
	s.mu.Unlock()

	if session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "no more stats"})
		return
	}

	s.streamLines(c, session.Lines, session.Hold)
}

func (s *Server) streamLines(c *gin.Context, lines []string, hold bool) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	for _, line := range lines {
		if _, err := io.WriteString(c.Writer, line+"\n"); err != nil {
			return
		}
		c.Writer.Flush()
	}
	c.Writer.Flush()

	if hold {
		select {
		case <-c.Request.Context().Done():
		case <-s.stop:
		}
	}
}

func (s *Server) handleRedeploy(c *gin.Context) {
	var body struct {
		EnvVars map[string]string `json:"envVars"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalidRequest", "message": err.Error()})
		return
	}

	id := c.Param("deploymentId")

	s.mu.Lock()
	s.redeploys = append(s.redeploys, Redeploy{DeploymentID: id, Internal: c.Query("internal"), EnvVars: body.EnvVars})
	domains := s.redeployDomains
	s.mu.Unlock()

	if domains == nil {
		domains = []string{id + "-env.deno.dev"}
	}

	envVars := make([]string, 0, len(body.EnvVars))
	for k := range body.EnvVars {
		envVars = append(envVars, k)
	}
	sort.Strings(envVars)

	c.JSON(http.StatusOK, deployment(id+"-env", "", envVars, domains...))
}

func (s *Server) handleDelete(c *gin.Context) {
	s.mu.Lock()
	s.deleted = append(s.deleted, c.Param("deploymentId"))
	s.mu.Unlock()
	c.Status(http.StatusOK)
}

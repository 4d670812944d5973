package deploysdk_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deployctl/deployctl/internal/apitest"
	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSDK(t *testing.T, srv *apitest.Server, token string) *deploysdk.DeploySDK {
	t.Helper()
	sdk, err := deploysdk.New(&deploysdk.Config{BaseURL: srv.URL, Token: token})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)
	return sdk
}

func TestProjects_Get(t *testing.T) {
	srv := apitest.New(t)
	srv.AddProject("p1", "hello-world")
	sdk := newSDK(t, srv, apitest.Token)

	project, err := sdk.Projects.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", project.ID)
	assert.Equal(t, "hello-world", project.Name)

	_, err = sdk.Projects.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, deploysdk.IsNotFound(err))

	var apiErr *deploysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, deploysdk.CodeProjectNotFound, apiErr.Code)
	assert.NotEmpty(t, apiErr.XDenoRay)

	_, err = sdk.Projects.Get(context.Background(), "")
	assert.ErrorIs(t, err, deploysdk.ErrNoProject)
}

func TestSDK_Unauthorized(t *testing.T) {
	srv := apitest.New(t)
	srv.AddProject("p1", "hello-world")
	sdk := newSDK(t, srv, "wrong-token")

	_, err := sdk.Projects.Get(context.Background(), "p1")

	var apiErr *deploysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, deploysdk.CodeUnauthorized, apiErr.Code)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSDK_RequestHeaders(t *testing.T) {
	srv := apitest.New(t)
	srv.AddProject("p1", "hello-world")
	sdk := newSDK(t, srv, apitest.Token)

	for i := 0; i < 3; i++ {
		_, err := sdk.Projects.Get(context.Background(), "p1")
		require.NoError(t, err)
	}

	requests := srv.Requests()
	require.Len(t, requests, 3)

	seen := map[string]bool{}
	for _, r := range requests {
		assert.True(t, strings.HasPrefix(r.UserAgent, "deployctl/"), r.UserAgent)
		assert.NotEmpty(t, r.RequestID)
		seen[r.RequestID] = true
	}
	assert.Len(t, seen, 3, "request ids must be unique")
}

func buildManifest(t *testing.T, files map[string]string) (*manifest.Manifest, manifest.HashIndex) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	m, index, err := manifest.Build(root)
	require.NoError(t, err)
	return m, index
}

func TestAssets_Negotiate(t *testing.T) {
	srv := apitest.New(t)
	sdk := newSDK(t, srv, apitest.Token)

	m, _ := buildManifest(t, map[string]string{
		"main.ts":       "console.log(1)\n",
		"static/a.txt":  "a\n",
		"static/b.txt":  "b\n",
		"static/a2.txt": "a\n",
	})
	srv.AddKnownBlobs(manifest.BlobHash([]byte("b\n")))

	needed, err := sdk.Assets.Negotiate(context.Background(), "p1", m)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		manifest.BlobHash([]byte("console.log(1)\n")),
		"78981922613b2afb6025042ff6bd878ac1994e85",
	}, needed)

	srv.AddKnownBlobs(needed...)
	needed, err = sdk.Assets.Negotiate(context.Background(), "p1", m)
	require.NoError(t, err)
	assert.NotNil(t, needed)
	assert.Empty(t, needed)
}

func TestDeployments_CreateWithAssets(t *testing.T) {
	srv := apitest.New(t)
	srv.SetDeployEvents(
		apitest.StaticFileEvent(0, 2),
		apitest.StaticFileEvent(2, 2),
		apitest.LoadEvent("file:///src/main.ts", 1, 1),
		apitest.UploadCompleteEvent(),
		apitest.SuccessEvent("dpl1", "p1", "hello.deno.dev", "hello-dpl1.deno.dev"),
	)
	sdk := newSDK(t, srv, apitest.Token)

	importMap := "file:///src/import_map.json"
	stream, err := sdk.Deployments.CreateWithAssets(context.Background(), "p1", &deploysdk.DeployRequest{
		URL:          "file:///src/main.ts",
		ImportMapURL: &importMap,
		Production:   true,
	}, [][]byte{[]byte("a\n"), []byte("b\n")})
	require.NoError(t, err)
	defer stream.Close()

	var events []deploysdk.ProgressEvent
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.Len(t, events, 5)
	assert.Equal(t, deploysdk.ProgressStaticFile, events[0].Type)
	assert.Equal(t, deploysdk.ProgressLoad, events[2].Type)
	require.NotNil(t, events[4].Deployment)
	assert.Equal(t, "dpl1", events[4].Deployment.ID)
	assert.Equal(t, []string{"hello.deno.dev", "hello-dpl1.deno.dev"}, events[4].Deployment.Domains())

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "p1", uploads[0].ProjectID)
	assert.Equal(t, "file:///src/main.ts", uploads[0].Request["url"])
	assert.Equal(t, importMap, uploads[0].Request["importMapUrl"])
	assert.Equal(t, true, uploads[0].Request["production"])
	assert.Equal(t, [][]byte{[]byte("a\n"), []byte("b\n")}, uploads[0].Files)
}

func TestDeployments_CreateWithoutFiles(t *testing.T) {
	srv := apitest.New(t)
	sdk := newSDK(t, srv, apitest.Token)

	stream, err := sdk.Deployments.CreateWithAssets(context.Background(), "p1", &deploysdk.DeployRequest{
		URL: "https://example.com/main.ts",
	}, nil)
	require.NoError(t, err)
	defer stream.Close()

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Empty(t, uploads[0].Files)
	assert.Nil(t, uploads[0].Request["importMapUrl"])
	assert.NotContains(t, uploads[0].Request, "manifest")
}

func TestDeployments_CreateRejected(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail(apitest.RouteDeploy, apitest.Failure{Status: http.StatusBadRequest, Code: "entrypointNotFound", Message: "no such file"})
	sdk := newSDK(t, srv, apitest.Token)

	stream, err := sdk.Deployments.CreateWithAssets(context.Background(), "p1", &deploysdk.DeployRequest{URL: "file:///src/main.ts"}, nil)
	assert.Nil(t, stream)

	var apiErr *deploysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "entrypointNotFound", apiErr.Code)
	assert.Equal(t, "no such file", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotEmpty(t, apiErr.XDenoRay)
}

func TestDeployments_RedeployAndDelete(t *testing.T) {
	srv := apitest.New(t)
	srv.SetRedeployDomains("env.deno.dev")
	sdk := newSDK(t, srv, apitest.Token)

	deployment, err := sdk.Deployments.Redeploy(context.Background(), "dpl1", &deploysdk.RedeployParams{
		EnvVars: map[string]string{"FOO": "bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dpl1-env", deployment.ID)
	assert.Equal(t, []string{"env.deno.dev"}, deployment.Domains())
	assert.Equal(t, []string{"FOO"}, deployment.EnvVars)

	redeploys := srv.Redeploys()
	require.Len(t, redeploys, 1)
	assert.Equal(t, "true", redeploys[0].Internal)
	assert.Equal(t, map[string]string{"FOO": "bar"}, redeploys[0].EnvVars)

	require.NoError(t, sdk.Deployments.Delete(context.Background(), "dpl1"))
	assert.Equal(t, []string{"dpl1"}, srv.Deleted())

	assert.ErrorIs(t, sdk.Deployments.Delete(context.Background(), ""), deploysdk.ErrNoDeployment)
}

func TestStats_SubscribeReconnects(t *testing.T) {
	srv := apitest.New(t)
	srv.SetStatsSessions(
		apitest.StatsSession{Lines: []string{
			apitest.StatsLine("iso1", "us-east4", "dpl1", 10),
			"garbage",
			apitest.StatsLine("iso2", "europe-west2", "dpl1", 20),
		}},
		apitest.StatsSession{Lines: []string{
			apitest.StatsLine("iso1", "us-east4", "dpl1", 30),
		}, Hold: true},
	)
	sdk := newSDK(t, srv, apitest.Token)

	feed := sdk.Stats.Subscribe("p1").SetReconnectDelay(10 * time.Millisecond)
	defer feed.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got []float64
	for i := 0; i < 3; i++ {
		rec, err := feed.Next(ctx)
		require.NoError(t, err)
		got = append(got, rec.RequestsPerMinute)
	}

	assert.Equal(t, []float64{10, 20, 30}, got)
	assert.Equal(t, 1, feed.Reconnects())
	assert.Equal(t, 2, srv.StatsConnects())
}

func TestStats_OpenRejected(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail(apitest.RouteStats, apitest.Failure{Status: http.StatusForbidden, Code: "forbidden", Message: "no access to project"})
	sdk := newSDK(t, srv, apitest.Token)

	stream, err := sdk.Stats.Open(context.Background(), "p1")
	assert.Nil(t, stream)

	var apiErr *deploysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "forbidden", apiErr.Code)
	assert.Equal(t, "no access to project", apiErr.Message)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.NotEmpty(t, apiErr.XDenoRay)
}

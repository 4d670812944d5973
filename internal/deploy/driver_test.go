package deploy

import (
	"errors"
	"io"
	"testing"

	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	events []deploysdk.ProgressEvent
	err    error
	reads  int
}

func (f *fakeSource) Next() (deploysdk.ProgressEvent, error) {
	f.reads++
	if f.reads > len(f.events) {
		if f.err != nil {
			return deploysdk.ProgressEvent{}, f.err
		}
		return deploysdk.ProgressEvent{}, io.EOF
	}
	return f.events[f.reads-1], nil
}

func collect(t *testing.T) (ProgressFunc, *[]Progress) {
	t.Helper()
	var got []Progress
	return func(p Progress) { got = append(got, p) }, &got
}

func success(domains ...string) deploysdk.ProgressEvent {
	mappings := make([]deploysdk.DomainMapping, 0, len(domains))
	for _, d := range domains {
		mappings = append(mappings, deploysdk.DomainMapping{Domain: d})
	}
	return deploysdk.ProgressEvent{
		Type:       deploysdk.ProgressSuccess,
		Deployment: &deploysdk.Deployment{ID: "dpl1", DomainMappings: mappings},
	}
}

func TestDrive_SuccessSequence(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		{Type: deploysdk.ProgressStaticFile, CurrentBytes: 1, TotalBytes: 2},
		{Type: deploysdk.ProgressStaticFile, CurrentBytes: 2, TotalBytes: 2},
		{Type: deploysdk.ProgressLoad, URL: "file:///src/main.ts", Seen: 1, Total: 2},
		{Type: deploysdk.ProgressLoad, URL: "file:///src/deps.ts", Seen: 2, Total: 2},
		{Type: deploysdk.ProgressUploadComplete},
		success("a.deno.dev", "b.deno.dev"),
	}}
	onProgress, got := collect(t)

	deployment, err := Drive(src, onProgress)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.deno.dev", "b.deno.dev"}, deployment.Domains())
	assert.Equal(t, 6, src.reads)

	var phases []Phase
	var percents []float64
	for _, p := range *got {
		phases = append(phases, p.Phase)
		percents = append(percents, p.Percent)
	}
	assert.Equal(t, []Phase{
		PhaseUploading, PhaseUploading,
		PhaseBuilding, PhaseBuilding,
		PhaseFinishing,
		PhaseDone,
	}, phases)
	assert.Equal(t, []float64{50, 100, 50, 100, 0, 100}, percents)
	assert.Equal(t, "file:///src/main.ts", (*got)[2].URL)
}

func TestDrive_StopsReadingAfterSuccess(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		success("a.deno.dev"),
		{Type: deploysdk.ProgressError, Code: "late"},
	}}

	_, err := Drive(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.reads)
}

func TestDrive_ErrorIsTerminal(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		{Type: deploysdk.ProgressStaticFile, CurrentBytes: 1, TotalBytes: 2},
		{Type: deploysdk.ProgressError, Code: "deploymentFailed", Ctx: "boot failure"},
		success("never.deno.dev"),
	}}
	onProgress, got := collect(t)

	deployment, err := Drive(src, onProgress)
	assert.Nil(t, deployment)

	var deployErr *DeploymentError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, "deploymentFailed", deployErr.Code)
	assert.Equal(t, "boot failure", deployErr.Ctx)
	assert.Equal(t, "deployment failed: deploymentFailed: boot failure", err.Error())

	assert.Equal(t, 2, src.reads)
	assert.Equal(t, PhaseFailed, (*got)[len(*got)-1].Phase)
}

func TestDrive_ZeroTotalReportsZeroPercent(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		{Type: deploysdk.ProgressStaticFile},
		{Type: deploysdk.ProgressLoad, URL: "https://deno.land/std/http/server.ts"},
		success(),
	}}
	onProgress, got := collect(t)

	_, err := Drive(src, onProgress)
	require.NoError(t, err)
	assert.Equal(t, float64(0), (*got)[0].Percent)
	assert.Equal(t, float64(0), (*got)[1].Percent)
}

func TestDrive_StreamEndWithoutTerminalEvent(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		{Type: deploysdk.ProgressUploadComplete},
	}}

	_, err := Drive(src, nil)
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestDrive_TransportErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset by peer")
	src := &fakeSource{err: boom}

	_, err := Drive(src, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.reads)
}

func TestDrive_DecodeErrorIsFatal(t *testing.T) {
	src := &fakeSource{err: &deploysdk.DecodeError{Line: []byte("{oops"), Err: errors.New("bad json")}}

	_, err := Drive(src, nil)
	var decodeErr *deploysdk.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDrive_UnknownEventIsIgnored(t *testing.T) {
	src := &fakeSource{events: []deploysdk.ProgressEvent{
		{Type: "somethingNew"},
		success("a.deno.dev"),
	}}

	deployment, err := Drive(src, nil)
	require.NoError(t, err)
	assert.Equal(t, "dpl1", deployment.ID)
}

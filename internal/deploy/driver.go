package deploy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/deployctl/deployctl/internal/deploysdk"
)

// Phase is the stage a deployment is in, as seen from the progress stream
type Phase string

const (
	PhaseUploading Phase = "uploading"
	PhaseBuilding  Phase = "building"
	PhaseFinishing Phase = "finishing"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Progress is a snapshot handed to ProgressFunc after every event
type Progress struct {
	Phase   Phase
	Current int64
	Total   int64
	Percent float64
	URL     string
}

type ProgressFunc func(Progress)

// EventSource yields progress events until io.EOF
type EventSource interface {
	Next() (deploysdk.ProgressEvent, error)
}

func percent(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

// Drive consumes src in a single pass and returns the deployment once the
// server reports success. Nothing is read after a success or error event.
// Any other way the stream can end is fatal.
func Drive(src EventSource, onProgress ProgressFunc) (*deploysdk.Deployment, error) {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrStreamEnded
		}
		if err != nil {
			return nil, fmt.Errorf("deploy: read progress: %w", err)
		}

		switch ev.Type {
		case deploysdk.ProgressStaticFile:
			report(Progress{
				Phase:   PhaseUploading,
				Current: ev.CurrentBytes,
				Total:   ev.TotalBytes,
				Percent: percent(ev.CurrentBytes, ev.TotalBytes),
			})

		case deploysdk.ProgressLoad:
			report(Progress{
				Phase:   PhaseBuilding,
				Current: ev.Seen,
				Total:   ev.Total,
				Percent: percent(ev.Seen, ev.Total),
				URL:     ev.URL,
			})

		case deploysdk.ProgressUploadComplete:
			report(Progress{Phase: PhaseFinishing})

		case deploysdk.ProgressSuccess:
			if ev.Deployment == nil {
				return nil, fmt.Errorf("deploy: success event without deployment")
			}
			report(Progress{Phase: PhaseDone, Percent: 100})
			return ev.Deployment, nil

		case deploysdk.ProgressError:
			report(Progress{Phase: PhaseFailed})
			return nil, &DeploymentError{Code: ev.Code, Ctx: ev.Ctx}

		default:
			slog.Debug("ignoring progress event", "type", ev.Type)
		}
	}
}

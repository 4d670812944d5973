package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/deployctl/deployctl/internal/deploy"
	"github.com/deployctl/deployctl/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const barWidth = 40

// reporter renders deploy progress. On a terminal the current phase is
// redrawn in place with a progress bar; otherwise one line is written per
// phase change.
type reporter struct {
	out       io.Writer
	tty       bool
	bar       progress.Model
	phase     deploy.Phase
	lineDirty bool
}

func newReporter(out io.Writer) *reporter {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return &reporter{
		out: out,
		tty: tty,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

// Hash is called for every file added to the manifest
func (r *reporter) Hash(p manifest.Progress) {
	if r.tty {
		r.redraw(fmt.Sprintf("%s %d files, %s", cyan.Render("hashing"), p.Files, humanize.Bytes(uint64(p.Bytes))))
	}
}

// Progress is the deploy.ProgressFunc of the reporter
func (r *reporter) Progress(p deploy.Progress) {
	changed := p.Phase != r.phase
	r.phase = p.Phase

	if !r.tty {
		if changed {
			r.println(r.describe(p))
		}
		return
	}

	switch p.Phase {
	case deploy.PhaseUploading, deploy.PhaseBuilding:
		r.redraw(fmt.Sprintf("%s %s", r.describe(p), r.bar.ViewAs(p.Percent/100)))
	default:
		r.redraw(r.describe(p))
	}
}

func (r *reporter) describe(p deploy.Progress) string {
	switch p.Phase {
	case deploy.PhaseUploading:
		return cyan.Render("uploading") + " " + fmt.Sprintf("%s / %s", humanize.Bytes(uint64(p.Current)), humanize.Bytes(uint64(p.Total)))
	case deploy.PhaseBuilding:
		return cyan.Render("building") + " " + fmt.Sprintf("%d / %d modules", p.Current, p.Total)
	case deploy.PhaseFinishing:
		return cyan.Render("finishing") + " " + gray.Render("waiting for the deployment to start")
	case deploy.PhaseDone:
		return green.Render("deployed")
	case deploy.PhaseFailed:
		return red.Render("failed")
	default:
		return string(p.Phase)
	}
}

// Finish terminates the in-place line
func (r *reporter) Finish() {
	if r.lineDirty {
		fmt.Fprintln(r.out)
		r.lineDirty = false
	}
}

func (r *reporter) redraw(line string) {
	fmt.Fprintf(r.out, "\r\x1b[2K%s", line)
	r.lineDirty = true
}

func (r *reporter) println(line string) {
	r.Finish()
	fmt.Fprintln(r.out, strings.TrimRight(line, "\n"))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/deployctl/deployctl/internal/deploysdk"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	// isolates that stop reporting for this long are dropped from the table
	isolateTTL   = 30 * time.Second
	tickInterval = time.Second
)

var topHeaders = []string{"ISOLATE", "REGION", "DEPLOYMENT", "REQ/MIN", "CPU/MIN", "MEMORY", "INGRESS/MIN", "EGRESS/MIN", "UPTIME"}

func init() {
	rootCmd.AddCommand(newTopCmd())
}

func newTopCmd() *cobra.Command {
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Show live resource usage of a project's isolates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, nil)
			if err != nil {
				return err
			}
			if s.Project == "" {
				return fmt.Errorf("%w: pass --project or set it in %s", deploysdk.ErrNoProject, s.ConfigPath)
			}

			sdk, err := deploysdk.New(&deploysdk.Config{BaseURL: s.API, Token: s.Token})
			if err != nil {
				return err
			}
			defer sdk.Close()

			cmd.SilenceUsage = true

			feed := sdk.Stats.Subscribe(s.Project)
			defer feed.Close()

			return runTop(cmd.Context(), feed, cmd.OutOrStdout(), s.Project)
		},
	}

	flags := topCmd.Flags()
	flags.StringP("project", "p", "", "Project name or id")
	flags.String("token", "", "Access token (default $DENO_DEPLOY_TOKEN)")
	flags.String("root", ".", "Directory holding deno.json(c)")
	flags.String("config", "", "Path to deno.json(c)")

	return topCmd
}

type statsSource interface {
	Next(ctx context.Context) (deploysdk.StatsRecord, error)
}

// runTop renders src until ctx ends or the user quits. A terminal gets a
// live table; anything else gets one line per record.
func runTop(ctx context.Context, src statsSource, out io.Writer, project string) error {
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return streamTop(ctx, src, out)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newTopModel(project), tea.WithContext(ctx), tea.WithOutput(out))

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		for {
			rec, err := src.Next(egCtx)
			if err != nil {
				// only ends with the context
				return nil
			}
			program.Send(statsMsg(rec))
		}
	})

	eg.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return eg.Wait()
}

func streamTop(ctx context.Context, src statsSource, out io.Writer) error {
	for {
		rec, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "%s %s %s req/min=%.1f cpu/min=%.0fms mem=%s in/min=%s out/min=%s uptime=%s\n",
			rec.ID, rec.Region, rec.DeploymentID,
			rec.RequestsPerMinute, rec.CPUTimePerMinute,
			humanize.Bytes(rec.RSSBytes),
			humanize.Bytes(rec.IngressBytesPerMinute),
			humanize.Bytes(rec.EgressBytesPerMinute),
			formatUptime(rec.Uptime),
		)
	}
}

// ===================================================================================================

type statsMsg deploysdk.StatsRecord

type tickMsg time.Time

type isolateRow struct {
	record   deploysdk.StatsRecord
	lastSeen time.Time
}

type topModel struct {
	project  string
	isolates map[string]isolateRow
	now      time.Time
	width    int
}

func newTopModel(project string) topModel {
	return topModel{
		project:  project,
		isolates: make(map[string]isolateRow),
		now:      time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m topModel) Init() tea.Cmd {
	return tick()
}

func (m topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case statsMsg:
		m.isolates[msg.ID] = isolateRow{record: deploysdk.StatsRecord(msg), lastSeen: m.now}

	case tickMsg:
		m.now = time.Time(msg)
		for id, row := range m.isolates {
			if m.now.Sub(row.lastSeen) > isolateTTL {
				delete(m.isolates, id)
			}
		}
		return m, tick()
	}

	return m, nil
}

// rows are sorted by region, then isolate id
func (m topModel) rows() [][]string {
	records := make([]deploysdk.StatsRecord, 0, len(m.isolates))
	for _, row := range m.isolates {
		records = append(records, row.record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Region != records[j].Region {
			return records[i].Region < records[j].Region
		}
		return records[i].ID < records[j].ID
	})

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Region,
			r.DeploymentID,
			fmt.Sprintf("%.1f", r.RequestsPerMinute),
			fmt.Sprintf("%.0fms", r.CPUTimePerMinute),
			humanize.Bytes(r.RSSBytes),
			humanize.Bytes(r.IngressBytesPerMinute),
			humanize.Bytes(r.EgressBytesPerMinute),
			formatUptime(r.Uptime),
		})
	}
	return rows
}

func (m topModel) View() string {
	title := bold.Render("deployctl top") + " " + cyan.Render(m.project)

	if len(m.isolates) == 0 {
		return title + "\n\n" + gray.Render("waiting for isolates to report...") + "\n\n" + gray.Render("q to quit") + "\n"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		Headers(topHeaders...).
		Rows(m.rows()...)
	if m.width > 0 {
		t = t.Width(m.width)
	}

	return title + "\n" + t.Render() + "\n" + gray.Render(fmt.Sprintf("%d isolates, q to quit", len(m.isolates))) + "\n"
}

func formatUptime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/bruin-data/session-summary/pkg/scheduler"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xlab/treeprint"
)

const maxMessageLength = 80

// Summary renders the end-of-run table: one row per instance in scheduling order.
type Summary struct {
	Instances []scheduler.TaskInstance
	Results   []*scheduler.TaskExecutionResult
	NoColor   bool
}

func (s Summary) resultFor(instance scheduler.TaskInstance) *scheduler.TaskExecutionResult {
	for _, r := range s.Results {
		if r.Instance == instance {
			return r
		}
	}

	return nil
}

func (s Summary) Render() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.Style().Options.SeparateRows = false
	t.Style().Options.SeparateColumns = true
	t.Style().Options.DrawBorder = true

	t.AppendHeader(table.Row{"", "Task", "Status", "Duration", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 3, Align: text.AlignCenter},
		{Number: 2, WidthMax: 50},
		{Number: 3, WidthMax: 20, Align: text.AlignLeft},
		{Number: 4, WidthMax: 12, Align: text.AlignRight},
		{Number: 5, WidthMax: maxMessageLength},
	})

	for _, instance := range s.Instances {
		status := instance.GetStatus()
		duration := ""
		message := ""
		if r := s.resultFor(instance); r != nil {
			if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
				duration = formatDuration(r.FinishedAt.Sub(r.StartedAt))
			}
			if r.Error != nil {
				message = firstLine(r.Error.Error())
			}
		}
		if message == "" {
			message = outputsText(instance.GetOutputs())
		}

		t.AppendRow(table.Row{s.icon(status), instance.GetHumanID(), s.statusText(status), duration, message})
	}

	return t.Render() + "\n"
}

func (s Summary) icon(status scheduler.TaskInstanceStatus) string {
	var symbol string
	var attr color.Attribute
	switch status {
	case scheduler.Succeeded:
		symbol, attr = "✓", color.FgGreen
	case scheduler.Failed:
		symbol, attr = "✗", color.FgRed
	case scheduler.UpstreamFailed:
		symbol, attr = "⊘", color.FgYellow
	case scheduler.Skipped:
		symbol, attr = "↷", color.Faint
	default:
		symbol, attr = "○", color.Faint
	}

	if s.NoColor {
		return symbol
	}

	return color.New(attr).Sprint(symbol)
}

func (s Summary) statusText(status scheduler.TaskInstanceStatus) string {
	str := strings.ReplaceAll(status.String(), "_", " ")
	if s.NoColor {
		return str
	}

	switch status {
	case scheduler.Succeeded:
		return color.New(color.FgGreen).Sprint(str)
	case scheduler.Failed:
		return color.New(color.FgRed).Sprint(str)
	case scheduler.UpstreamFailed:
		return color.New(color.FgYellow).Sprint(str)
	default:
		return color.New(color.Faint).Sprint(str)
	}
}

// FailureTree renders the failed instances with their error messages, nil when nothing failed.
func FailureTree(results []*scheduler.TaskExecutionResult) treeprint.Tree {
	failed := make([]*scheduler.TaskExecutionResult, 0)
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	noun := "tasks"
	if len(failed) == 1 {
		noun = "task"
	}

	tree := treeprint.NewWithRoot(color.New(color.FgRed).Sprintf("%d %s failed", len(failed), noun))
	for _, r := range failed {
		branch := tree.AddBranch(r.Instance.GetHumanReadableDescription())
		for _, line := range strings.Split(strings.TrimSpace(r.Error.Error()), "\n") {
			branch.AddNode(faint(line))
		}
	}

	return tree
}

func outputsText(outputs map[string]string) string {
	keys := []string{"rows", "duplicates", "fingerprint", "attempts"}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := outputs[k]; ok && v != "" {
			if k == "attempts" && v == "1" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}

	return firstLine(strings.Join(parts, " "))
}

func firstLine(msg string) string {
	if nlPos := strings.Index(msg, "\n"); nlPos != -1 {
		msg = msg[:nlPos]
	}
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength-3] + "..."
	}

	return msg
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

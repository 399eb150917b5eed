package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"opsflow/internal/capability"
	"opsflow/internal/history"
	"opsflow/internal/workflow"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

const maxCellWidth = 60

// Renderer writes engine values to a terminal in the selected format.
type Renderer struct {
	Format OutputFormat
	Out    io.Writer
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(format OutputFormat, out io.Writer) *Renderer {
	return &Renderer{Format: format, Out: out}
}

// RenderResult prints a workflow run: one row per step and a summary line.
func (r *Renderer) RenderResult(result workflow.WorkflowResult) error {
	if r.Format != OutputFormatTable {
		return r.structured(result)
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"STEP", "STATUS", "ATTEMPTS", "DURATION", "MESSAGE"})
	for _, sr := range result.StepResults {
		t.AppendRow(table.Row{
			sr.StepName,
			statusLabel(sr.Success, sr.Skipped),
			sr.Attempts,
			fmt.Sprintf("%dms", sr.DurationMs),
			truncate(sr.Message),
		})
	}
	t.Render()

	fmt.Fprintf(r.Out, "\n%s %s %s (%s, %dms)\n",
		headerStyle.Render("Workflow"),
		result.WorkflowID,
		statusLabel(result.Success, false),
		result.Summary(),
		result.DurationMs(),
	)
	if result.Error != "" {
		fmt.Fprintf(r.Out, "%s %s\n", failStyle.Render("Error:"), result.Error)
	}
	fmt.Fprintf(r.Out, "%s\n", dimStyle.Render("run "+result.RunID))
	return nil
}

// RenderWorkflows prints the stored workflow definitions.
func (r *Renderer) RenderWorkflows(workflows []workflow.Workflow) error {
	if r.Format != OutputFormatTable {
		return r.structured(workflows)
	}
	if len(workflows) == 0 {
		fmt.Fprintln(r.Out, skipStyle.Render("No workflows found"))
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"ID", "NAME", "STEPS", "INPUTS", "DESCRIPTION"})
	for _, wf := range workflows {
		inputs := strings.Join(workflow.InputKeys(wf), ", ")
		if inputs == "" {
			inputs = dimStyle.Render("-")
		}
		t.AppendRow(table.Row{wf.ID, wf.Name, len(wf.Steps), inputs, truncate(wf.Description)})
	}
	t.Render()
	return nil
}

// RenderWorkflow prints one definition. The table format shows the steps.
func (r *Renderer) RenderWorkflow(wf workflow.Workflow, source string) error {
	switch r.Format {
	case OutputFormatTable:
	case OutputFormatYAML:
		data, err := workflow.Marshal(wf)
		if err != nil {
			return err
		}
		_, err = r.Out.Write(data)
		return err
	default:
		return r.structured(wf)
	}

	fmt.Fprintf(r.Out, "%s %s (%s)\n", headerStyle.Render("Workflow"), wf.ID, wf.Name)
	if wf.Description != "" {
		fmt.Fprintln(r.Out, wf.Description)
	}
	if source != "" {
		fmt.Fprintln(r.Out, dimStyle.Render("Source: "+source))
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"#", "STEP", "INTEGRATION", "ACTION", "RETRIES", "CONDITION"})
	for i, step := range wf.Steps {
		condition := step.Condition
		if condition == "" {
			condition = dimStyle.Render("-")
		}
		t.AppendRow(table.Row{i + 1, step.DisplayName(), step.IntegrationID, step.Action, step.MaxRetries, condition})
	}
	t.Render()
	return nil
}

// RenderHealth prints the health report sorted by integration id.
func (r *Renderer) RenderHealth(health map[string]capability.HealthStatus) error {
	if r.Format != OutputFormatTable {
		return r.structured(health)
	}

	ids := make([]string, 0, len(health))
	for id := range health {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := r.newTable()
	t.AppendHeader(table.Row{"INTEGRATION", "STATUS", "LATENCY", "MESSAGE"})
	for _, id := range ids {
		status := health[id]
		t.AppendRow(table.Row{id, healthLabel(status.Healthy), fmt.Sprintf("%dms", status.LatencyMs), truncate(status.Message)})
	}
	t.Render()
	return nil
}

// RenderRuns prints recorded runs, newest first.
func (r *Renderer) RenderRuns(records []history.Record) error {
	if r.Format != OutputFormatTable {
		return r.structured(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(r.Out, skipStyle.Render("No runs recorded"))
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"RUN", "STATUS", "STARTED", "DURATION", "OK", "FAILED", "SKIPPED"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.RunID,
			runLabel(rec),
			rec.StartTime.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%dms", rec.DurationMs),
			rec.Succeeded,
			rec.Failed,
			rec.Skipped,
		})
	}
	t.Render()
	return nil
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.SetStyle(table.StyleRounded)
	return t
}

// structured writes v as JSON or YAML. History records only carry json
// tags, so YAML goes through a JSON round trip to keep the same field names.
func (r *Renderer) structured(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	switch r.Format {
	case OutputFormatJSON:
		_, err = fmt.Fprintln(r.Out, string(data))
		return err
	case OutputFormatYAML:
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		yamlData, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to convert to YAML: %w", err)
		}
		_, err = r.Out.Write(yamlData)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", r.Format)
	}
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxCellWidth {
		return s
	}
	return s[:maxCellWidth-3] + "..."
}

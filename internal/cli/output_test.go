package cli

import (
	"bytes"
	"testing"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/history"
	"opsflow/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

func sampleResult() workflow.WorkflowResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return workflow.WorkflowResult{
		RunID:      "run-1",
		WorkflowID: "deploy",
		Success:    false,
		Error:      "step scale failed",
		StartTime:  start,
		EndTime:    start.Add(1500 * time.Millisecond),
		StepResults: []workflow.StepResult{
			{StepID: "check", StepName: "Check", Success: true, Message: "pong", Attempts: 1, DurationMs: 3},
			{StepID: "notify", StepName: "Notify", Success: true, Skipped: true, Message: workflow.SkippedMessage},
			{StepID: "scale", StepName: "Scale", Success: false, Message: "forbidden", Attempts: 3, DurationMs: 40},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "table", want: OutputFormatTable},
		{in: "JSON", want: OutputFormatJSON},
		{in: " yaml ", want: OutputFormatYAML},
		{in: "", want: OutputFormatTable},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderResult_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderResult(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "Check")
	assert.Contains(t, out, LabelPass)
	assert.Contains(t, out, LabelSkip)
	assert.Contains(t, out, LabelFail)
	assert.Contains(t, out, "3 steps: 1 succeeded, 1 failed, 1 skipped")
	assert.Contains(t, out, "step scale failed")
	assert.Contains(t, out, "1500ms")
	assert.Contains(t, out, "run-1")
}

func TestRenderResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatJSON, &buf).RenderResult(sampleResult()))

	out := buf.String()
	assert.Equal(t, "deploy", gjson.Get(out, "workflowId").String())
	assert.Equal(t, int64(3), gjson.Get(out, "stepResults.2.attempts").Int())
	assert.True(t, gjson.Get(out, "stepResults.1.skipped").Bool())
}

func TestRenderResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatYAML, &buf).RenderResult(sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Equal(t, false, decoded["success"])
}

func TestRenderWorkflows(t *testing.T) {
	wfs := []workflow.Workflow{
		workflow.NewBuilder("deploy", "Deploy").
			Description("Roll out").
			Step(workflow.NewStep("s", "kubernetes", "scale_deployment").Param("name", "${service}")).
			Build(),
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderWorkflows(wfs))
	assert.Contains(t, buf.String(), "deploy")
	assert.Contains(t, buf.String(), "service")
	assert.Contains(t, buf.String(), "Roll out")

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderWorkflows(nil))
	assert.Contains(t, buf.String(), "No workflows found")

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatJSON, &buf).RenderWorkflows(wfs))
	assert.Equal(t, "scale_deployment", gjson.Get(buf.String(), "0.steps.0.action").String())
}

func TestRenderWorkflow(t *testing.T) {
	wf := workflow.NewBuilder("deploy", "Deploy").
		Step(workflow.NewStep("scale", "kubernetes", "scale_deployment").MaxRetries(2).Condition("${ready}")).
		Build()

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderWorkflow(wf, "/srv/flows/deploy.yaml"))
	assert.Contains(t, buf.String(), "scale_deployment")
	assert.Contains(t, buf.String(), "${ready}")
	assert.Contains(t, buf.String(), "Source: /srv/flows/deploy.yaml")

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderWorkflow(wf, ""))
	assert.NotContains(t, buf.String(), "Source:")

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatYAML, &buf).RenderWorkflow(wf, "/srv/flows/deploy.yaml"))
	parsed, err := workflow.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, wf.Steps[0].MaxRetries, parsed.Steps[0].MaxRetries)
}

func TestRenderHealth(t *testing.T) {
	health := map[string]capability.HealthStatus{
		"kubernetes": {Healthy: false, Message: "not configured"},
		"core":       {Healthy: true, Message: "ok", LatencyMs: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderHealth(health))
	out := buf.String()
	assert.Contains(t, out, "unhealthy")
	assert.Contains(t, out, "not configured")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("core")), bytes.Index(buf.Bytes(), []byte("kubernetes")))
}

func TestRenderRuns(t *testing.T) {
	records := []history.Record{
		{RunID: "run-3", WorkflowID: "deploy", Status: history.StatusRunning, StartTime: time.Now()},
		{RunID: "run-2", WorkflowID: "deploy", Status: history.StatusSucceeded, Success: true, Succeeded: 2, StartTime: time.Now()},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderRuns(records))
	assert.Contains(t, buf.String(), "run-2")
	assert.Contains(t, buf.String(), LabelRun)

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatYAML, &buf).RenderRuns(records))
	assert.Contains(t, buf.String(), "runId: run-2")

	buf.Reset()
	require.NoError(t, NewRenderer(OutputFormatTable, &buf).RenderRuns(nil))
	assert.Contains(t, buf.String(), "No runs recorded")
}

func TestTruncate(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 100)
	assert.Len(t, truncate(string(long)), maxCellWidth)
	assert.Equal(t, "a b", truncate("a\nb"))
}

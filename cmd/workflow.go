package cmd

import (
	"fmt"
	"strings"

	"opsflow/internal/cli"
	"opsflow/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	workflowOutputFormat string
	workflowVars         []string
	workflowFile         string
	workflowRemote       string
	workflowRunsLimit    int
)

// workflowCmd represents the workflow command
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect and run workflow definitions",
	Long: `Inspect and run workflow definitions.

Available commands:
  list     - List all workflow definitions
  get      - Get detailed information about a specific workflow
  validate - Validate a workflow definition file
  run      - Run a workflow and print its result
  runs     - List recorded runs of a workflow`,
}

// workflowListCmd lists all workflow definitions
var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all workflow definitions",
	Long: `List all workflow definitions found in the workflows directory,
with the context keys each one expects as input.`,
	Args: cobra.NoArgs,
	RunE: runWorkflowList,
}

// workflowGetCmd gets detailed information about a workflow
var workflowGetCmd = &cobra.Command{
	Use:   "get <workflow-id>",
	Short: "Get detailed information about a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowGet,
}

// workflowValidateCmd validates a workflow definition
var workflowValidateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Validate a workflow definition",
	Long: `Validate a workflow definition file without running it.

The workflow file should contain a valid workflow definition
in YAML format. Use '-' to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowValidate,
}

// workflowRunCmd runs a workflow
var workflowRunCmd = &cobra.Command{
	Use:   "run [workflow-id]",
	Short: "Run a workflow",
	Long: `Run a stored workflow, or the definition in --file, and print the result.

Variables seed the run context and are referenced from step parameters
as ${name}:

  opsflow workflow run deploy --var service=api --var replicas=3

With --remote the workflow runs on a serving opsflow instance through its
MCP endpoint. The command exits non-zero when the run fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflowRun,
}

// workflowRunsCmd lists recorded runs
var workflowRunsCmd = &cobra.Command{
	Use:   "runs <workflow-id>",
	Short: "List recorded runs of a workflow",
	Long: `List recorded runs of a workflow, newest first. Runs from other
processes are only visible with the redis history backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowRuns,
}

func init() {
	rootCmd.AddCommand(workflowCmd)

	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowGetCmd)
	workflowCmd.AddCommand(workflowValidateCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowRunsCmd)

	workflowCmd.PersistentFlags().StringVarP(&workflowOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")

	workflowRunCmd.Flags().StringArrayVar(&workflowVars, "var", nil, "Context variable as key=value (repeatable)")
	workflowRunCmd.Flags().StringVarP(&workflowFile, "file", "f", "", "Run the workflow definition in this file instead of a stored one")
	workflowRunCmd.Flags().StringVar(&workflowRemote, "remote", "", "MCP endpoint of a running opsflow serve, e.g. http://localhost:8091")

	workflowRunsCmd.Flags().IntVar(&workflowRunsLimit, "limit", 20, "Maximum number of runs to show (0 for all)")
}

func workflowRenderer(cmd *cobra.Command) (*cli.Renderer, error) {
	format, err := cli.ParseOutputFormat(workflowOutputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewRenderer(format, cmd.OutOrStdout()), nil
}

func runWorkflowList(cmd *cobra.Command, args []string) error {
	renderer, err := workflowRenderer(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	return renderer.RenderWorkflows(application.Services().Manager.List())
}

func runWorkflowGet(cmd *cobra.Command, args []string) error {
	renderer, err := workflowRenderer(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	wf, err := application.Services().Manager.Get(args[0])
	if err != nil {
		return err
	}
	source, _ := application.Services().Storage.Source(wf.ID)
	return renderer.RenderWorkflow(wf, source)
}

func runWorkflowValidate(cmd *cobra.Command, args []string) error {
	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is valid (%d steps)\n", wf.ID, len(wf.Steps))
	if inputs := workflow.InputKeys(wf); len(inputs) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Inputs: %s\n", strings.Join(inputs, ", "))
	}
	return nil
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	renderer, err := workflowRenderer(cmd)
	if err != nil {
		return err
	}
	vars, err := parseVars(workflowVars)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	var result workflow.WorkflowResult
	switch {
	case workflowRemote != "":
		if len(args) != 1 {
			return fmt.Errorf("a workflow id is required with --remote")
		}
		client := cli.NewRemoteClient(workflowRemote)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", workflowRemote, err)
		}
		defer client.Close()

		result, err = client.RunWorkflow(ctx, args[0], vars)
		if err != nil {
			return err
		}

	default:
		application, err := newApplication(cmd)
		if err != nil {
			return err
		}
		defer application.Close()
		manager := application.Services().Manager

		id, err := runTarget(args, application.Services().Storage)
		if err != nil {
			return err
		}
		result, err = manager.Run(ctx, id, vars)
		if err != nil {
			return err
		}
	}

	if err := renderer.RenderResult(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("workflow %s failed", result.WorkflowID)
	}
	return nil
}

// runTarget resolves the workflow to run. A --file definition is added to
// storage so the run is recorded like any other.
func runTarget(args []string, storage *workflow.WorkflowStorage) (string, error) {
	if workflowFile == "" {
		if len(args) != 1 {
			return "", fmt.Errorf("either a workflow id or --file is required")
		}
		return args[0], nil
	}

	wf, err := workflow.LoadFile(workflowFile)
	if err != nil {
		return "", err
	}
	if len(args) == 1 && args[0] != wf.ID {
		return "", fmt.Errorf("workflow file defines %q, not %q", wf.ID, args[0])
	}
	if err := storage.Add(wf); err != nil {
		return "", err
	}
	return wf.ID, nil
}

func runWorkflowRuns(cmd *cobra.Command, args []string) error {
	renderer, err := workflowRenderer(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()
	manager := application.Services().Manager

	if _, err := manager.Get(args[0]); err != nil {
		return err
	}
	records, err := manager.Runs(commandContext(cmd), args[0], workflowRunsLimit)
	if err != nil {
		return err
	}
	return renderer.RenderRuns(records)
}

// parseVars turns key=value pairs into run context variables. Values stay
// strings; conditions treat "false" as false.
func parseVars(pairs []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

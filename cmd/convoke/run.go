package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/convoke/internal/agent"
	"github.com/ShayCichocki/convoke/internal/api"
	"github.com/ShayCichocki/convoke/internal/config"
	"github.com/ShayCichocki/convoke/internal/orchestrator"
	"github.com/ShayCichocki/convoke/internal/plan"
	"github.com/ShayCichocki/convoke/internal/prompts"
	"github.com/ShayCichocki/convoke/internal/tui"
	"github.com/ShayCichocki/convoke/pkg/models"
)

func runQuery(cmd *cobra.Command, args []string) error {
	query, err := readQuery(args)
	if err != nil {
		return err
	}
	if query == "" {
		return cmd.Help()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	defaultModel := cfg.Models.Default
	if rootModel != "" {
		defaultModel = rootModel
	}

	client, err := api.NewClient(api.ClientConfig{
		DefaultModel:  defaultModel,
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.AWS.UseBedrock,
		AWSRegion:     cfg.AWS.Region,
		AWSProfile:    cfg.AWS.Profile,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	store, err := prompts.NewStore(cfg.Prompts.Dir)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	if cfg.Prompts.Dir != "" {
		if err := store.Watch(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: prompt watching disabled: %v\n", err)
		}
	}
	defer store.Close()

	routes, err := config.LoadRoutes(cfg.Models.RoutesFile)
	if err != nil {
		return fmt.Errorf("loading model routes: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	logger := orchestrator.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	maxReplans := cfg.Orchestrator.MaxReplans
	if rootMaxReplans >= 0 {
		maxReplans = rootMaxReplans
	}

	planner := &routedPlanner{
		inner:   plan.NewPlanner(client, cfg.Models.Planner, store.PlannerSystem()),
		routes:  routes,
		timeout: cfg.Timeouts.Plan,
	}
	runner := agent.NewRunner(client, cfg.Timeouts.Agent)

	useTUI := !rootHeadless && !cfg.TUI.Disable && isatty.IsTerminal(os.Stdout.Fd())

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxReplans(maxReplans),
		orchestrator.WithEventBufferSize(cfg.Orchestrator.EventBuffer),
		orchestrator.WithVerdictModel(cfg.Models.Verdict),
		orchestrator.WithVerdictSystem(store.VerdictSystem()),
		orchestrator.WithVerdictTimeout(cfg.Timeouts.Verdict),
	}
	streamVerdict := !useTUI
	if streamVerdict {
		// Plain runs stream the verdict to stdout as it is produced.
		opts = append(opts, orchestrator.WithVerdictSink(os.Stdout))
	}

	orch := orchestrator.New(planner, runner, client, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	type runResult struct {
		outcome *orchestrator.Outcome
		err     error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		outcome, err := orch.Run(ctx, query)
		resultCh <- runResult{outcome, err}
	}()

	if useTUI {
		if aborted, err := tui.Run(query, orch.Events()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: display error: %v\n", err)
		} else if aborted {
			stop()
		}
	} else {
		printEvents(orch.Events())
	}

	result := <-resultCh
	if result.err != nil {
		return fmt.Errorf("run failed: %w", result.err)
	}

	printOutcome(result.outcome, client.Tracker(), streamVerdict)
	return nil
}

// routedPlanner applies model routes to every graph the planner produces and
// bounds each planning call. Agents whose spec names a model keep it; the
// rest route by type keyword.
type routedPlanner struct {
	inner   *plan.Planner
	routes  *config.ModelRoutes
	timeout time.Duration
}

func (r *routedPlanner) Plan(ctx context.Context, query string) (*models.AgentGraph, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	graph, err := r.inner.Plan(ctx, query)
	if err != nil {
		return nil, err
	}
	r.applyRoutes(graph)
	return graph, nil
}

func (r *routedPlanner) Replan(ctx context.Context, query string, limitations []models.ToolLimitation) (*models.AgentGraph, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	graph, err := r.inner.Replan(ctx, query, limitations)
	if err != nil {
		return nil, err
	}
	r.applyRoutes(graph)
	return graph, nil
}

func (r *routedPlanner) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *routedPlanner) applyRoutes(graph *models.AgentGraph) {
	for i := range graph.Agents {
		if graph.Agents[i].Model == "" {
			graph.Agents[i].Model = r.routes.Resolve(graph.Agents[i].Type)
		}
	}
}

// printEvents renders the event stream as plain colored lines for headless
// runs and piped output.
func printEvents(events <-chan orchestrator.Event) {
	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for e := range events {
		switch e.Type {
		case orchestrator.EventPlanStarted:
			dim.Fprintln(os.Stderr, "planning...")
		case orchestrator.EventPlanCompleted:
			dim.Fprintf(os.Stderr, "plan ready: %s\n", e.Message)
		case orchestrator.EventWaveStarted:
			dim.Fprintf(os.Stderr, "wave %d: %s\n", e.Wave, e.Message)
		case orchestrator.EventAgentStarted:
			fmt.Fprintf(os.Stderr, "  agent %d started: %s\n", e.AgentID, e.AgentType)
		case orchestrator.EventAgentCompleted:
			if e.Message == "fallback_success" {
				yellow.Fprintf(os.Stderr, "  agent %d completed via fallback\n", e.AgentID)
			} else {
				green.Fprintf(os.Stderr, "  agent %d completed\n", e.AgentID)
			}
		case orchestrator.EventAgentFailed:
			red.Fprintf(os.Stderr, "  agent %d failed: %v\n", e.AgentID, e.Err)
		case orchestrator.EventDeadlock:
			red.Fprintf(os.Stderr, "scheduling stalled: %s\n", e.Message)
		case orchestrator.EventReplanRequested:
			yellow.Fprintf(os.Stderr, "re-planning: %s\n", e.Message)
		case orchestrator.EventReplanFailed:
			red.Fprintf(os.Stderr, "re-plan failed: %v\n", e.Err)
		case orchestrator.EventVerdictStarted:
			dim.Fprintln(os.Stderr, "synthesizing...")
		case orchestrator.EventRunCompleted:
			dim.Fprintf(os.Stderr, "done: %s\n", e.Message)
		}
	}
}

// printOutcome writes the final answer to stdout and a short run summary to
// stderr, keeping stdout clean for piping. When the verdict was already
// streamed only the trailing newline is added.
func printOutcome(outcome *orchestrator.Outcome, tracker *api.TokenTracker, streamed bool) {
	if streamed && !outcome.Degraded {
		fmt.Println()
	} else {
		fmt.Println(outcome.Output)
	}

	dim := color.New(color.Faint)
	input, output := tracker.Total()
	dim.Fprintf(os.Stderr, "\n%d agent(s) succeeded (%d via fallback), %d failed, %d pass(es), %d wave(s) in %s\n",
		outcome.Succeeded(), outcome.FallbackSucceeded(), outcome.Failed(), outcome.Passes, outcome.Waves, outcome.Duration.Round(10*time.Millisecond))
	dim.Fprintf(os.Stderr, "%d API call(s), %d input / %d output tokens (~$%.4f)\n",
		tracker.Calls(), input, output, tracker.Cost())

	if outcome.Degraded {
		color.New(color.FgYellow).Fprintln(os.Stderr, "note: final synthesis failed; raw agent outputs were returned")
	}
	if len(outcome.Limitations) > 0 {
		color.New(color.FgYellow).Fprintf(os.Stderr, "note: %d critical tool limitation(s) remain unresolved\n", len(outcome.Limitations))
	}
	if outcome.Deadlocked {
		color.New(color.FgRed).Fprintf(os.Stderr, "note: scheduling stalled: %s\n", outcome.Diagnostics)
	}
}

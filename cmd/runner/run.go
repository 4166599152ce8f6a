package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brennhill/runlattice/internal/actiongen"
	"github.com/brennhill/runlattice/internal/analyzer"
	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/budget"
	"github.com/brennhill/runlattice/internal/config"
	"github.com/brennhill/runlattice/internal/events"
	"github.com/brennhill/runlattice/internal/logging"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/report"
	"github.com/brennhill/runlattice/internal/resilience"
	"github.com/brennhill/runlattice/internal/sequencer"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runOptions collects the run command's flags before they're resolved
// into a types.RunDescriptor.
type runOptions struct {
	urls         []string
	mode         string
	browser      string
	tier         string
	instructions string
	viewportW    int
	viewportH    int
	scriptOut    string
	narrativeOut string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "drive one run against one or more target URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.urls, "url", nil, "target URL (repeat for multi mode)")
	flags.StringVar(&opts.mode, "mode", string(types.ModeSingle), "test mode: single|multi|all|monkey|guest|behavior")
	flags.StringVar(&opts.browser, "browser", string(types.BrowserChromium), "browser engine: chromium|firefox|webkit")
	flags.StringVar(&opts.tier, "tier", string(types.TierIndie), "subscription tier: guest|starter|indie|pro|agency")
	flags.StringVar(&opts.instructions, "instructions", "", "natural-language goal for the run (defaults to free exploration)")
	flags.IntVar(&opts.viewportW, "viewport-width", 1280, "viewport width in pixels")
	flags.IntVar(&opts.viewportH, "viewport-height", 720, "viewport height in pixels")
	flags.StringVar(&opts.scriptOut, "script-out", "", "write a Playwright reproduction script to this path")
	flags.StringVar(&opts.narrativeOut, "narrative-out", "", "write a human-readable step narrative to this path")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runMain(ctx context.Context, opts *runOptions) error {
	cfg := config.Load()
	log := logging.New(cfg.Observability.LogLevel)
	defer log.Sync()

	desc, err := buildDescriptor(opts)
	if err != nil {
		return err
	}

	deps := buildDeps(cfg, log)
	seq := sequencer.New(deps)

	summary, err := seq.Run(ctx, desc)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("outcome: %s\n", summary.Outcome)
	if summary.FailureReason != "" {
		fmt.Printf("reason: %s\n", summary.FailureReason)
	}
	fmt.Printf("steps: %d (healed: %d)\n", len(summary.Steps), summary.Healed)
	fmt.Printf("ai calls: %d (vision: %d)\n", summary.AICallsUsed, summary.VisionCallsUsed)

	if opts.narrativeOut != "" {
		if err := os.WriteFile(opts.narrativeOut, []byte(report.BuildNarrative(summary, desc.FirstURL())), 0o644); err != nil {
			return fmt.Errorf("write narrative: %w", err)
		}
	}
	if opts.scriptOut != "" {
		if err := os.WriteFile(opts.scriptOut, []byte(report.BuildPlaywrightScript(summary, desc.FirstURL())), 0o644); err != nil {
			return fmt.Errorf("write script: %w", err)
		}
	}
	return nil
}

func buildDescriptor(opts *runOptions) (types.RunDescriptor, error) {
	mode := types.TestMode(strings.ToLower(opts.mode))
	if _, ok := types.ConfigForMode(mode); !ok {
		return types.RunDescriptor{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
	if len(opts.urls) == 0 {
		return types.RunDescriptor{}, fmt.Errorf("at least one --url is required")
	}

	return types.RunDescriptor{
		RunID:        types.NewRunID(),
		TargetURLs:   opts.urls,
		Mode:         mode,
		Browser:      types.BrowserType(strings.ToLower(opts.browser)),
		Viewport:     types.Viewport{Width: opts.viewportW, Height: opts.viewportH},
		Tier:         types.Tier(strings.ToLower(opts.tier)),
		Instructions: opts.instructions,
		CreatedAt:    time.Now(),
	}, nil
}

// buildDeps wires a Sequencer's collaborators from the resolved
// environment Config. The Browser Manager is always the in-memory
// FakeManager: wiring a real CDP/WebDriver adapter is an explicit
// Non-goal, so this CLI demonstrates the orchestration end to end
// against a scripted page rather than a live one.
func buildDeps(cfg config.Config, log *zap.Logger) sequencer.Deps {
	provider := model.NewOpenAIProvider(model.OpenAIProviderConfig{
		APIURL:         cfg.Model.APIURL,
		APIKey:         cfg.Model.APIKey,
		OrgID:          cfg.Model.OrgID,
		Model:          cfg.Model.Model,
		VisionModel:    cfg.Model.VisionModel,
		VisionEndpoint: cfg.Model.VisionEndpoint,
		MaxTokens:      cfg.Model.MaxTokens,
		Temperature:    float64(cfg.Model.Temperature),
	})
	textClient := model.New(provider, nil, log, nil)

	var visionClient *model.Client
	if cfg.Model.VisionEnabled {
		visionClient = model.New(provider, nil, log, nil)
	}

	sink := events.NewMultiSink(events.NewLoggingSink(log))
	reg := registry.New()

	return sequencer.Deps{
		Registry:       reg,
		Budgets:        budget.NewManager(),
		Breakers:       resilience.NewStore(log, nil),
		BrowserManager: browser.NewFakeManager(),
		Analyzer: analyzer.New(reg, textClient, visionClient, analyzer.Config{
			DOMSummaryLimit:           cfg.Analyzer.DOMSummaryLimit,
			AccessibilitySummaryLimit: cfg.Analyzer.AccessibilitySummaryLimit,
			VisionEnabled:             cfg.Model.VisionEnabled,
		}, log),
		ActionGen:    actiongen.New(textClient, actiongen.NewInMemoryStore(), log),
		VisionClient: visionClient,
		Sink:         sink,
		Log:          log,
	}
}

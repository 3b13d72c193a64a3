// internal/automator/automator.go

// Package automator orchestrates a full run: parse instructions, generate a
// snippet per instruction, execute it, and retry with error feedback until
// the instruction succeeds or attempts run out.
package automator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
	"github.com/pilotweb/pilot-cli/internal/browser"
	"github.com/pilotweb/pilot-cli/internal/config"
	"github.com/pilotweb/pilot-cli/internal/engine"
	"github.com/pilotweb/pilot-cli/internal/generator"
	"github.com/pilotweb/pilot-cli/internal/llmclient"
	"github.com/pilotweb/pilot-cli/internal/parser"
)

// Executor runs snippets. Satisfied by *engine.Engine; faked in tests.
type Executor interface {
	Execute(ctx context.Context, snippet string, bindings map[string]any) schemas.Outcome
	ExecutionCount() int64
}

// Session is the browser handle the automator manages. Satisfied by
// *browser.Session.
type Session interface {
	schemas.Environment
	Close() error
}

// Summary describes a finished run.
type Summary struct {
	RunID        string `json:"run_id"`
	Instructions int    `json:"instructions"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Executions   int64  `json:"executions"`
	Success      bool   `json:"success"`
}

// Automator drives instruction runs. Not safe for concurrent use.
type Automator struct {
	cfg    *config.Config
	logger *zap.Logger

	parser    *parser.Parser
	generator *generator.Generator

	session Session
	engine  Executor

	// Factories exist so tests can substitute fakes for the real browser.
	sessionFactory func(ctx context.Context) (Session, error)
	engineFactory  func(env schemas.Environment) Executor

	summary Summary
}

// New wires an Automator from configuration. The browser is not launched
// here; it starts lazily on the first instruction that needs it.
func New(cfg *config.Config, logger *zap.Logger) (*Automator, error) {
	client, err := llmclient.NewClient(cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	gen, err := generator.New(client, generator.FromModelConfig(cfg.Model, cfg.Automation), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	a := &Automator{
		cfg:       cfg,
		logger:    logger.Named("automator"),
		parser:    parser.New(logger),
		generator: gen,
	}
	a.sessionFactory = func(ctx context.Context) (Session, error) {
		return browser.NewSession(ctx, cfg.Browser, logger)
	}
	a.engineFactory = func(env schemas.Environment) Executor {
		return engine.New(env, engine.Config{
			ScreenshotOnError: cfg.Automation.ScreenshotOnError,
			ScreenshotDir:     cfg.Automation.ScreenshotDir,
		}, logger)
	}
	return a, nil
}

// Run processes an instruction sequence and reports whether every instruction
// succeeded. A panic anywhere in the loop aborts the run instead of crashing
// the process.
func (a *Automator) Run(ctx context.Context, lines []string) (ok bool) {
	runID := uuid.New().String()
	runLogger := a.logger.With(zap.String("run_id", runID))

	a.summary = Summary{RunID: runID}

	defer func() {
		if rec := recover(); rec != nil {
			runLogger.Error("Run aborted by panic", zap.Any("panic", rec))
			ok = false
		}
		a.summary.Success = ok
		if a.engine != nil {
			a.summary.Executions = a.engine.ExecutionCount()
		}
		a.teardown(runLogger)
	}()

	queue := a.parser.ParseLines(lines)
	a.summary.Instructions = len(queue)
	if len(queue) == 0 {
		runLogger.Warn("No instructions to run")
		return true
	}

	runLogger.Info("Starting run", zap.Int("instructions", len(queue)))

	allOK := true
	for i, instruction := range queue {
		if i > 0 {
			if err := a.pause(ctx, a.cfg.Automation.ActionDelay); err != nil {
				runLogger.Warn("Run canceled between instructions", zap.Error(err))
				return false
			}
		}

		if err := a.ensureBrowser(ctx); err != nil {
			runLogger.Error("Could not start browser", zap.Error(err))
			return false
		}

		if a.executeInstruction(ctx, runLogger, instruction) {
			a.summary.Succeeded++
			continue
		}

		a.summary.Failed++
		allOK = false
		if a.cfg.Automation.RetryAttempts <= 1 {
			// Fail-fast mode: the first failed instruction ends the run.
			runLogger.Warn("Stopping run on first failure", zap.String("instruction", instruction))
			break
		}
		runLogger.Warn("Instruction failed, continuing with the rest", zap.String("instruction", instruction))
	}

	runLogger.Info("Run finished",
		zap.Bool("success", allOK),
		zap.Int("succeeded", a.summary.Succeeded),
		zap.Int("failed", a.summary.Failed))
	return allOK
}

// RunScript splits a block of instruction text into lines and runs it.
func (a *Automator) RunScript(ctx context.Context, source string) bool {
	return a.Run(ctx, strings.Split(strings.TrimSpace(source), "\n"))
}

// RunFile reads an instruction file and runs it.
func (a *Automator) RunFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("could not read instruction file %q: %w", path, err)
	}
	return a.RunScript(ctx, string(data)), nil
}

// LastSummary returns the summary of the most recent run.
func (a *Automator) LastSummary() Summary {
	return a.summary
}

// executeInstruction runs the generate/execute/retry loop for one
// instruction. A generation failure aborts the instruction immediately; there
// is nothing to execute and nothing new to feed back.
func (a *Automator) executeInstruction(ctx context.Context, logger *zap.Logger, instruction string) bool {
	attempts := a.cfg.Automation.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	// Generation sees the instruction and the prior failure, nothing else.
	// Keeping page state out of the prompt keeps the snippet cache reusable
	// across runs.
	priorError := ""
	for attempt := 1; attempt <= attempts; attempt++ {
		snippet, err := a.generator.Generate(ctx, instruction, priorError)
		if err != nil {
			logger.Error("Snippet generation failed",
				zap.String("instruction", instruction),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return false
		}

		outcome := a.engine.Execute(ctx, snippet, nil)
		if outcome.Success {
			logger.Info("Instruction succeeded",
				zap.String("instruction", instruction),
				zap.Int("attempt", attempt))
			a.pause(ctx, a.cfg.Automation.SettleDelay)
			return true
		}

		// No pause here: action_delay separates instructions, not retry
		// attempts. The only intra-instruction delay is the generator's own
		// provider retry pacing.
		priorError = outcome.Failure.Text()
		logger.Warn("Instruction attempt failed",
			zap.String("instruction", instruction),
			zap.Int("attempt", attempt),
			zap.String("failure", priorError))
	}
	return false
}

// ensureBrowser lazily starts the browser session and engine. Idempotent.
func (a *Automator) ensureBrowser(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	session, err := a.sessionFactory(ctx)
	if err != nil {
		return err
	}
	a.session = session
	a.engine = a.engineFactory(session)
	return nil
}

// pause sleeps for d unless the context ends first.
func (a *Automator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardown releases the browser at the end of a run. Best effort: a close
// failure is logged, never surfaced. With close_browser disabled the session
// stays open for inspection and Close releases it later.
func (a *Automator) teardown(logger *zap.Logger) {
	if a.session == nil || !a.cfg.Automation.CloseBrowser {
		return
	}
	if err := a.session.Close(); err != nil {
		logger.Warn("Browser teardown failed", zap.Error(err))
	}
	a.session = nil
	a.engine = nil
}

// Close releases the browser regardless of the close_browser setting.
func (a *Automator) Close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	a.engine = nil
	return err
}

// PageText returns the current page text, for callers that want to inspect
// the page after a run with close_browser disabled.
func (a *Automator) PageText(ctx context.Context) (string, error) {
	if a.session == nil {
		return "", fmt.Errorf("no active browser session")
	}
	return a.session.GetPageText(ctx)
}

// CurrentURL returns the current page URL.
func (a *Automator) CurrentURL(ctx context.Context) (string, error) {
	if a.session == nil {
		return "", fmt.Errorf("no active browser session")
	}
	return a.session.GetCurrentURL(ctx)
}

// Screenshot captures the current page to path.
func (a *Automator) Screenshot(ctx context.Context, path string) error {
	if a.session == nil {
		return fmt.Errorf("no active browser session")
	}
	return a.session.Screenshot(ctx, path)
}

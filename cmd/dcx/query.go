package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dotcontext/dcx/internal/contextset"
	"github.com/dotcontext/dcx/internal/core"
	"github.com/dotcontext/dcx/internal/history"
	"github.com/dotcontext/dcx/internal/query"
	"github.com/dotcontext/dcx/internal/styles"
	"github.com/dotcontext/dcx/internal/tokens"
)

func runQuery(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	file := fs.String("file", "", "path to .context file")
	sets := fs.String("sets", "", "comma-separated context set names")
	model := fs.String("model", "", "model name from the configuration")
	systemPrompt := fs.String("system", "", "system prompt")
	temperature := fs.Float64("temperature", 0.7, "sampling temperature")
	maxTokens := fs.Int("max-tokens", 0, "maximum tokens to generate (0 = provider default)")
	noStream := fs.Bool("no-stream", false, "wait for the full response instead of streaming")
	hideFilenames := fs.Bool("hide-filenames", false, "omit file path headers from the context")
	noHistory := fs.Bool("no-history", false, "do not record this query in history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	questionText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if questionText == "" {
		return fmt.Errorf("usage: dcx query -sets <names> -model <name> <question>")
	}
	if *model == "" {
		return fmt.Errorf("a model is required, pass one with -model")
	}

	cfg, err := loadConfigForCommand(*file, logger)
	if err != nil {
		return err
	}

	historyManager, err := history.NewHistoryManager(core.HistoryFile())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	setNames := contextset.SplitNames(*sets)

	opts := query.Options{
		SetNames:       setNames,
		ModelName:      *model,
		Query:          questionText,
		SystemPrompt:   *systemPrompt,
		Temperature:    *temperature,
		HideFilenames:  *hideFilenames,
		DisableHistory: *noHistory,
	}
	if *maxTokens > 0 {
		opts.MaxTokens = maxTokens
	}

	// Streaming is the default, but only when output goes to a terminal;
	// piped output gets the complete response in one write.
	opts.Stream = !*noStream && term.IsTerminal(int(os.Stdout.Fd()))
	if opts.Stream {
		opts.OnChunk = func(chunk string) {
			fmt.Print(chunk)
		}
	}

	modelConfig := cfg.GetModel(*model)
	if modelConfig != nil {
		fmt.Printf("%s %s (%s)\n", styles.HEADING("Model:"), styles.NAME(*model), modelConfig.Provider)
	}
	if len(setNames) > 0 {
		fmt.Printf("%s %s\n", styles.HEADING("Context:"), styles.NAME(strings.Join(setNames, ", ")))
	}
	fmt.Printf("%s %s\n\n", styles.HEADING("Query:"), questionText)
	fmt.Println(styles.HEADING("Response:"))

	// Interrupting a streaming query cancels the network read; the partial
	// response accumulated so far is still recorded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	executor := query.NewExecutor(cfg, historyManager, logger)
	result, err := executor.Execute(ctx, opts)
	if err != nil && result == nil {
		return err
	}

	if !opts.Stream && result != nil {
		fmt.Println(result.Response.Text)
	}
	fmt.Println()

	if result == nil {
		return err
	}

	if result.FilesIncluded > 0 || result.FilesSkipped > 0 {
		line := fmt.Sprintf("%d files, ~%s tokens", result.FilesIncluded, tokens.FormatCount(result.TokenEstimate))
		if result.FilesSkipped > 0 {
			line += fmt.Sprintf(" (%d unreadable files skipped)", result.FilesSkipped)
		}
		fmt.Println(styles.DIM(line))
	}

	switch {
	case result.Incomplete && result.RecordID != "":
		fmt.Println(styles.DIM(fmt.Sprintf("Interrupted. Partial response saved to history as %s.", result.RecordID)))
	case result.Incomplete:
		fmt.Println(styles.DIM("Interrupted."))
	case result.RecordID != "":
		fmt.Println(styles.DIM(fmt.Sprintf("Query complete. Saved to history as %s.", result.RecordID)))
	default:
		fmt.Println(styles.DIM("Query complete."))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Package query orchestrates one end-to-end question: resolve the
// requested context sets, assemble the file blob, dispatch to the
// configured model backend and record the exchange in history.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/assemble"
	"github.com/dotcontext/dcx/internal/config"
	"github.com/dotcontext/dcx/internal/contextset"
	"github.com/dotcontext/dcx/internal/history"
	"github.com/dotcontext/dcx/internal/provider"
)

// Options describes one query invocation.
type Options struct {
	// SetNames are the requested context set names in order. Empty means
	// the question is sent without any file context.
	SetNames []string

	ModelName    string
	Query        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    *int

	// HideFilenames omits per-file path headers from the assembled context.
	HideFilenames bool

	// Stream enables incremental output through OnChunk.
	Stream  bool
	OnChunk provider.StreamCallback

	// DisableHistory skips recording the exchange.
	DisableHistory bool
}

// Result reports the outcome of one query. RecordID is empty when history
// was disabled. Incomplete marks a response cut short by cancellation or
// a mid-stream failure; Response then holds the partial text.
type Result struct {
	RecordID      string
	Response      *provider.Response
	FilesIncluded int
	FilesSkipped  int
	TokenEstimate int
	Duration      time.Duration
	Incomplete    bool
}

type providerFactory func(model *config.ModelConfig, logger *zap.Logger) (provider.Provider, error)

// Executor wires the resolution, assembly, provider and history layers
// together for query execution.
type Executor struct {
	cfg       *config.Config
	resolver  *contextset.Resolver
	assembler *assemble.Assembler
	history   *history.HistoryManager
	logger    *zap.Logger

	newProvider providerFactory
}

// NewExecutor creates an executor over the given configuration. A nil
// history manager disables recording; a nil logger defaults to a no-op.
func NewExecutor(cfg *config.Config, historyManager *history.HistoryManager, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:         cfg,
		resolver:    contextset.NewResolver(cfg, nil, logger),
		assembler:   assemble.NewAssembler(logger),
		history:     historyManager,
		logger:      logger,
		newProvider: provider.New,
	}
}

// Execute runs one query end to end. A failed or cancelled streaming call
// that produced partial output still records the exchange, marked
// incomplete, and returns the partial result alongside the error.
func (e *Executor) Execute(ctx context.Context, opts Options) (*Result, error) {
	model := e.cfg.GetModel(opts.ModelName)
	if model == nil {
		return nil, &config.ConfigError{Err: fmt.Errorf("model '%s' is not defined", opts.ModelName)}
	}

	assembled := &assemble.Result{}
	if len(opts.SetNames) > 0 {
		resolved, err := e.resolver.Resolve(opts.SetNames, "")
		if err != nil {
			return nil, err
		}
		assembled = e.assembler.Assemble(resolved.Files, assemble.Options{
			HideFilenames: opts.HideFilenames,
			BaseDir:       e.cfg.BaseDir,
		})
	}

	prov, err := e.newProvider(model, e.logger)
	if err != nil {
		return nil, err
	}

	req := provider.Request{
		SystemPrompt: opts.SystemPrompt,
		Prompt:       assemble.BuildPrompt(assembled.Context, opts.Query),
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}

	e.logger.Info("dispatching query",
		zap.String("model", opts.ModelName),
		zap.String("provider", prov.Name()),
		zap.Strings("sets", opts.SetNames),
		zap.Int("files", assembled.FilesIncluded),
		zap.Int("tokenEstimate", assembled.TokenEstimate),
		zap.Bool("stream", opts.Stream),
	)

	start := time.Now()
	var response *provider.Response
	var provErr error
	if opts.Stream {
		response, provErr = prov.Stream(ctx, req, opts.OnChunk)
	} else {
		response, provErr = prov.Complete(ctx, req)
	}
	duration := time.Since(start)

	if provErr != nil && (response == nil || response.Text == "") {
		return nil, provErr
	}

	result := &Result{
		Response:      response,
		FilesIncluded: assembled.FilesIncluded,
		FilesSkipped:  assembled.FilesSkipped,
		TokenEstimate: assembled.TokenEstimate,
		Duration:      duration,
		Incomplete:    provErr != nil,
	}

	if !opts.DisableHistory && e.history != nil {
		recordID, histErr := e.history.Append(e.buildRecord(opts, response, result))
		if histErr != nil {
			// A history write failure must not discard an answer we already
			// paid for; log it and hand the response back without an id.
			e.logger.Error("failed to record query history", zap.Error(histErr))
		} else {
			result.RecordID = recordID
		}
	}

	return result, provErr
}

func (e *Executor) buildRecord(opts Options, response *provider.Response, result *Result) *history.QueryRecord {
	record := &history.QueryRecord{
		SetNames:     strings.Join(opts.SetNames, ","),
		ModelName:    opts.ModelName,
		SystemPrompt: opts.SystemPrompt,
		Query:        opts.Query,
		Response:     response.Text,
		Temperature:  opts.Temperature,
		FilesCount:   result.FilesIncluded,
		TokenCount:   result.TokenEstimate,
		DurationMs:   result.Duration.Milliseconds(),
		Incomplete:   result.Incomplete,
	}
	if opts.MaxTokens != nil {
		record.MaxTokens = sql.NullInt32{Int32: int32(*opts.MaxTokens), Valid: true}
	}
	return record
}

// Package orchestrator wires the pipeline together: conversation history,
// LLM query generation, schema validation with bounded correction retries,
// and execution against the Cube API.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/cube"
	"github.com/ziadkadry99/cube-pilot/internal/llm"
	"github.com/ziadkadry99/cube-pilot/internal/queryval"
	"github.com/ziadkadry99/cube-pilot/internal/report"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
	"github.com/ziadkadry99/cube-pilot/internal/sysprompt"
)

// DefaultMaxRetries bounds the validate-correct cycle per user query.
const DefaultMaxRetries = 2

// Executor runs a validated query. *cube.Client is the production
// implementation; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, q *queryval.Query) (*cube.ResultSet, error)
}

// Options configures an Orchestrator.
type Options struct {
	Provider llm.Provider
	Model    string
	Fetcher  *schema.Fetcher
	Executor Executor
	Store    *conversation.Store // optional persistence
	ViewName string
	CacheDir string
	// ReportDir enables CSV export of successful results when non-empty.
	ReportDir             string
	MaxRetries            int
	MaxHistory            int
	SuggestionMaxDistance int
	Verbose               bool
}

// Orchestrator owns per-session conversation state and processes queries
// end to end. It is safe for concurrent use.
type Orchestrator struct {
	provider    llm.Provider
	model       string
	fetcher     *schema.Fetcher
	executor    Executor
	store       *conversation.Store
	viewName    string
	reportDir   string
	maxRetries  int
	maxHistory  int
	maxDistance int
	verbose     bool

	promptCache *sysprompt.Cache

	mu           sync.Mutex
	catalog      *schema.Catalog
	validator    *queryval.Validator
	systemPrompt string
	promptMeta   sysprompt.Metadata
	sessions     map[string]*conversation.History
}

// New creates an orchestrator. Initialize must be called before the first
// query.
func New(opts Options) *Orchestrator {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Orchestrator{
		provider:    opts.Provider,
		model:       opts.Model,
		fetcher:     opts.Fetcher,
		executor:    opts.Executor,
		store:       opts.Store,
		viewName:    opts.ViewName,
		reportDir:   opts.ReportDir,
		maxRetries:  maxRetries,
		maxHistory:  opts.MaxHistory,
		maxDistance: opts.SuggestionMaxDistance,
		verbose:     opts.Verbose,
		promptCache: sysprompt.NewCache(opts.CacheDir),
		sessions:    map[string]*conversation.History{},
	}
}

// Initialize loads the schema catalog and prepares the system prompt,
// preferring a cached prompt when metadata cannot be fetched fresh.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	catalog, source, err := o.fetcher.FetchCatalog(ctx, o.viewName)
	if err != nil {
		if cached, meta, cacheErr := o.promptCache.Load(); cacheErr == nil {
			log.Printf("orchestrator: metadata unavailable (%v), using cached system prompt", err)
			o.mu.Lock()
			o.systemPrompt = cached
			o.promptMeta = meta
			o.validator = queryval.NewValidator(o.maxDistance)
			o.mu.Unlock()
			return nil
		}
		return fmt.Errorf("initializing orchestrator: %w", err)
	}

	prompt, meta := sysprompt.Build(catalog)
	if err := o.promptCache.Save(prompt, meta); err != nil {
		log.Printf("orchestrator: caching system prompt: %v", err)
	}
	if o.verbose {
		log.Printf("orchestrator: loaded %d measures, %d dimensions for view %s (source: %s)",
			len(catalog.Measures), len(catalog.Dimensions), catalog.ViewName, source)
	}

	o.mu.Lock()
	o.catalog = catalog
	o.validator = queryval.NewValidator(o.maxDistance)
	o.systemPrompt = prompt
	o.promptMeta = meta
	o.mu.Unlock()
	return nil
}

// RegenerateSystemPrompt refetches metadata and rebuilds the prompt cache.
func (o *Orchestrator) RegenerateSystemPrompt(ctx context.Context) (sysprompt.Metadata, error) {
	catalog, _, err := o.fetcher.FetchCatalog(ctx, o.viewName)
	if err != nil {
		return sysprompt.Metadata{}, fmt.Errorf("regenerating system prompt: %w", err)
	}
	prompt, meta := sysprompt.Build(catalog)
	if err := o.promptCache.Save(prompt, meta); err != nil {
		return sysprompt.Metadata{}, err
	}

	o.mu.Lock()
	o.catalog = catalog
	o.systemPrompt = prompt
	o.promptMeta = meta
	o.mu.Unlock()
	return meta, nil
}

// Catalog returns the loaded schema catalog, or nil before Initialize.
func (o *Orchestrator) Catalog() *schema.Catalog {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.catalog
}

// Result response types.
const (
	ResultData            = "data_result"
	ResultClarification   = "clarification"
	ResultValidationError = "validation_error"
	ResultCubeError       = "cube_error"
	ResultLLMError        = "llm_error"
)

// ProcessingResult is the outcome of one user query.
type ProcessingResult struct {
	SessionID       string           `json:"session_id"`
	ResponseType    string           `json:"response_type"`
	Interpretation  string           `json:"interpretation,omitempty"`
	Description     string           `json:"description,omitempty"`
	Message         string           `json:"message,omitempty"`
	Questions       []string         `json:"questions,omitempty"`
	Suggestions     []string         `json:"suggestions,omitempty"`
	ConfidenceScore float64          `json:"confidence_score,omitempty"`
	Query           *queryval.Query  `json:"query,omitempty"`
	Result          *cube.ResultSet  `json:"result,omitempty"`
	CSVPath         string           `json:"csv_path,omitempty"`
	Validation      *queryval.Result `json:"validation,omitempty"`
	Attempts        int              `json:"attempts"`
	Error           string           `json:"error,omitempty"`
	Elapsed         time.Duration    `json:"-"`
}

func (o *Orchestrator) session(sessionID string) *conversation.History {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.sessions[sessionID]
	if !ok {
		h = conversation.NewHistory(o.maxHistory)
		if o.store != nil {
			if rec, err := o.store.LoadSession(context.Background(), sessionID); err == nil {
				h.Import(rec.History)
			}
		}
		o.sessions[sessionID] = h
	}
	return h
}

func (o *Orchestrator) persist(ctx context.Context, sessionID string, h *conversation.History) {
	if o.store == nil {
		return
	}
	if err := o.store.EnsureSession(ctx, sessionID); err != nil {
		log.Printf("orchestrator: %v", err)
		return
	}
	if err := o.store.SaveSession(ctx, sessionID, h.Export(), nil); err != nil {
		log.Printf("orchestrator: %v", err)
	}
}

func (o *Orchestrator) recordMessage(ctx context.Context, sessionID, role, content, responseType string) {
	if o.store == nil {
		return
	}
	if err := o.store.AddMessage(ctx, sessionID, role, content, responseType); err != nil {
		log.Printf("orchestrator: %v", err)
	}
}

// ProcessQuery runs the full pipeline for one user query: LLM generation,
// validation with up to maxRetries correction rounds, and execution. An
// invalid query is never executed.
func (o *Orchestrator) ProcessQuery(ctx context.Context, sessionID, userQuery string) (*ProcessingResult, error) {
	start := time.Now()

	o.mu.Lock()
	systemPrompt := o.systemPrompt
	catalog := o.catalog
	validator := o.validator
	o.mu.Unlock()
	if systemPrompt == "" {
		return nil, fmt.Errorf("orchestrator not initialized")
	}

	h := o.session(sessionID)
	h.AddUser(userQuery)
	o.recordMessage(ctx, sessionID, "user", userQuery, "")

	result := &ProcessingResult{SessionID: sessionID}
	defer func() {
		result.Elapsed = time.Since(start)
		h.AddAssistant(conversation.AssistantReply{
			ResponseType:   historyType(result.ResponseType),
			Interpretation: historyContent(result),
		})
		o.persist(ctx, sessionID, h)
		o.recordMessage(ctx, sessionID, "assistant", historyContent(result), result.ResponseType)
	}()

	resp, err := o.generate(ctx, h.Messages(systemPrompt))
	if err != nil {
		result.ResponseType = ResultLLMError
		result.Error = err.Error()
		return result, nil
	}
	result.Interpretation = resp.Interpretation
	result.Description = resp.Description
	result.ConfidenceScore = resp.ConfidenceScore

	switch resp.ResponseType {
	case ResponseClarification:
		result.ResponseType = ResultClarification
		result.Message = resp.Message
		result.Questions = resp.Questions
		result.Suggestions = resp.Suggestions
		return result, nil
	case ResponseError:
		result.ResponseType = ResultLLMError
		result.Error = resp.Description
		return result, nil
	}

	// cube_query: validate, correct, execute.
	query := resp.CubeQuery
	if catalog == nil || validator == nil {
		// Running on a cached prompt without live metadata: execute without
		// local validation and rely on the API's own checks.
		return o.execute(ctx, result, query)
	}

	var validation *queryval.Result
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		result.Attempts = attempt + 1
		validation = validator.Validate(query, catalog)
		result.Validation = validation

		if validation.Valid {
			execResult, execErr := o.runQuery(ctx, query)
			if execErr == nil {
				result.ResponseType = ResultData
				result.Query = query
				result.Result = execResult
				result.CSVPath = o.exportCSV(execResult)
				return result, nil
			}
			if !cube.IsSchemaError(execErr) {
				result.ResponseType = ResultCubeError
				result.Query = query
				result.Error = execErr.Error()
				return result, nil
			}
			// The deployed schema disagrees with the local catalog. Feed the
			// API's error through the same correction path.
			validation = &queryval.Result{
				Valid:       false,
				Errors:      []string{execErr.Error()},
				Suggestions: map[string]string{},
			}
			result.Validation = validation
		}

		if attempt == o.maxRetries {
			break
		}
		if o.verbose {
			log.Printf("orchestrator: validation failed (attempt %d/%d), requesting correction: %v",
				attempt+1, o.maxRetries+1, validation.Errors)
		}

		corrected, corrErr := o.correct(ctx, systemPrompt, validation, userQuery, catalog)
		if corrErr != nil {
			result.ResponseType = ResultLLMError
			result.Error = corrErr.Error()
			return result, nil
		}
		query = corrected
	}

	result.ResponseType = ResultValidationError
	result.Query = query
	result.Error = fmt.Sprintf("query failed validation after %d attempts", result.Attempts)
	return result, nil
}

// generate runs the conversational completion and parses the response union.
func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message) (*LLMResponse, error) {
	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("completing %s request: %w", o.provider.Name(), err)
	}
	return ParseLLMResponse(resp.Content)
}

// correct asks the LLM to fix an invalid query. The correction runs in a
// fresh context so earlier invalid attempts cannot leak into the retry.
func (o *Orchestrator) correct(ctx context.Context, systemPrompt string, validation *queryval.Result, userQuery string, catalog *schema.Catalog) (*queryval.Query, error) {
	prompt := queryval.BuildCorrectionPrompt(validation, userQuery, catalog)
	resp, err := o.generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	if resp.ResponseType != ResponseCubeQuery {
		return nil, &UpstreamModelError{Reason: "correction did not return a cube_query response"}
	}
	return resp.CubeQuery, nil
}

func (o *Orchestrator) execute(ctx context.Context, result *ProcessingResult, query *queryval.Query) (*ProcessingResult, error) {
	result.Attempts = 1
	execResult, err := o.runQuery(ctx, query)
	if err != nil {
		result.ResponseType = ResultCubeError
		result.Query = query
		result.Error = err.Error()
		return result, nil
	}
	result.ResponseType = ResultData
	result.Query = query
	result.Result = execResult
	result.CSVPath = o.exportCSV(execResult)
	return result, nil
}

// exportCSV writes the result set to the report directory when one is
// configured. Export failures are logged, never fatal.
func (o *Orchestrator) exportCSV(rs *cube.ResultSet) string {
	if o.reportDir == "" || rs == nil {
		return ""
	}
	path, err := report.WriteCSV(o.reportDir, rs)
	if err != nil {
		log.Printf("orchestrator: exporting csv: %v", err)
		return ""
	}
	return path
}

func (o *Orchestrator) runQuery(ctx context.Context, q *queryval.Query) (*cube.ResultSet, error) {
	if o.executor == nil {
		return nil, fmt.Errorf("no query executor configured")
	}
	return o.executor.Execute(ctx, q)
}

// Status describes one session for status endpoints.
type Status struct {
	SessionID string                      `json:"session_id"`
	History   conversation.ContextSummary `json:"history"`
	Prompt    sysprompt.Metadata          `json:"system_prompt"`
	View      string                      `json:"view_name"`
}

// SessionStatus returns metadata about a session's conversation.
func (o *Orchestrator) SessionStatus(sessionID string) Status {
	h := o.session(sessionID)
	o.mu.Lock()
	meta := o.promptMeta
	o.mu.Unlock()
	return Status{
		SessionID: sessionID,
		History:   h.Context(),
		Prompt:    meta,
		View:      o.viewName,
	}
}

// SessionHistory returns the bounded history for a session.
func (o *Orchestrator) SessionHistory(sessionID string) []conversation.Message {
	return o.session(sessionID).Export()
}

// ClearSession drops in-memory and persisted state for a session.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()
	if o.store != nil {
		return o.store.DeleteSession(ctx, sessionID)
	}
	return nil
}

func historyType(resultType string) string {
	switch resultType {
	case ResultData:
		return "cube_query"
	case ResultClarification:
		return "clarification_needed"
	case ResultValidationError, ResultCubeError, ResultLLMError:
		return "error"
	default:
		return ""
	}
}

func historyContent(r *ProcessingResult) string {
	switch r.ResponseType {
	case ResultData:
		if r.Description != "" {
			return r.Description
		}
		return r.Interpretation
	case ResultClarification:
		return r.Message
	default:
		return r.Error
	}
}

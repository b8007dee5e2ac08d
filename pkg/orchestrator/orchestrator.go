// Package orchestrator runs the analyze and name-generation workflows:
// gate on usage and credentials, invoke the classifier, extract its payload
// and validate the result.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sdejongh/fylr/internal/platform"
	"github.com/sdejongh/fylr/pkg/classifier"
	"github.com/sdejongh/fylr/pkg/extract"
	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/storage"
	"github.com/sdejongh/fylr/pkg/usage"
)

const (
	opAnalyze  = "analyze"
	opGenerate = "generate names"
)

// AnalyzeOptions carries optional analysis parameters
type AnalyzeOptions struct {
	// Specificity is the category granularity, 1 (coarse) to 5 (fine); 0 leaves it to the classifier
	Specificity int
}

// Orchestrator owns the usage governor and talks to the classifier service
type Orchestrator struct {
	service     classifier.Service
	governor    *usage.Governor
	policy      models.LimitPolicy
	credentials Credentials
	extractOpts extract.Options
	logger      logging.Logger

	mu          sync.Mutex
	subscribers map[int]func(Event)
	nextSub     int
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPolicy selects the behavior when usage limits are exceeded
func WithPolicy(policy models.LimitPolicy) Option {
	return func(o *Orchestrator) {
		if policy.Valid() {
			o.policy = policy
		}
	}
}

// WithCredentials sets the credential source for online mode
func WithCredentials(c Credentials) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.credentials = c
		}
	}
}

// WithExtractOptions tunes payload extraction
func WithExtractOptions(opts extract.Options) Option {
	return func(o *Orchestrator) {
		o.extractOpts = opts
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator. The governor is required; it holds the mode
// and usage counters for every operation run through this orchestrator.
func New(service classifier.Service, governor *usage.Governor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		service:     service,
		governor:    governor,
		policy:      models.PolicyFallbackOffline,
		credentials: NewEnvCredentials(""),
		logger:      logging.NewNopLogger(),
		subscribers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode returns the mode in effect after the last operation
func (o *Orchestrator) Mode() models.Mode {
	return o.governor.Mode()
}

// Governor returns the usage governor
func (o *Orchestrator) Governor() *usage.Governor {
	return o.governor
}

// Analyze asks the classifier for a reorganization plan of dir.
// Entries that are incomplete, whose source is not an existing regular file,
// or whose destination leaves the directory are dropped with a warning.
func (o *Orchestrator) Analyze(ctx context.Context, dir string, mode models.Mode, opts AnalyzeOptions) (*plan.Plan, error) {
	backend, err := storage.NewLocal(dir)
	if err != nil {
		return nil, models.NewOpError(opAnalyze, models.ErrInvalidDirectory, dir, err)
	}
	root := backend.Root()

	mode, err = o.gate(ctx, opAnalyze, mode)
	if err != nil {
		return nil, err
	}

	req := classifier.Request{
		Action:      classifier.ActionOrganize,
		Directory:   root,
		OnlineMode:  mode.IsOnline(),
		Specificity: opts.Specificity,
	}

	var payload struct {
		Files []json.RawMessage `json:"files"`
	}
	if err := o.run(ctx, opAnalyze, root, req, &payload); err != nil {
		return nil, err
	}
	if payload.Files == nil {
		return nil, models.NewOpError(opAnalyze, models.ErrMalformedResponse, root, errors.New(`payload has no "files" collection`))
	}

	p := plan.New(root, nil)
	seen := make(map[string]bool)
	for i, raw := range payload.Files {
		item, reason := validateEntry(ctx, backend, raw)
		if reason == "" && seen[item.SrcPath] {
			reason = "duplicate source " + item.SrcPath
		}
		if reason != "" {
			o.warn(ctx, &p.Warnings, fmt.Sprintf("dropped entry %d: %s", i, reason))
			continue
		}
		seen[item.SrcPath] = true
		p.Items = append(p.Items, item)
	}

	o.logger.Info(ctx, "analysis complete", logging.Fields{
		"directory": root,
		"mode":      string(o.governor.Mode()),
		"items":     len(p.Items),
		"dropped":   len(p.Warnings),
	})
	return p, nil
}

// GenerateNames asks the classifier for new names for files.
// The mapping is keyed by current file name; names for files that were not
// requested are discarded.
func (o *Orchestrator) GenerateNames(ctx context.Context, files []models.FileEntry, mode models.Mode) (map[string]string, error) {
	if len(files) == 0 {
		return nil, models.NewOpError(opGenerate, models.ErrInvalidRequest, "", errors.New("no files given"))
	}

	mode, err := o.gate(ctx, opGenerate, mode)
	if err != nil {
		return nil, err
	}

	req := classifier.Request{
		Action:     classifier.ActionGenerate,
		OnlineMode: mode.IsOnline(),
		Files:      models.Refs(files),
	}

	var payload struct {
		Success        *bool             `json:"success"`
		GeneratedNames map[string]string `json:"generated_names"`
		Error          string            `json:"error"`
	}
	if err := o.run(ctx, opGenerate, "", req, &payload); err != nil {
		return nil, err
	}
	if payload.Success == nil {
		return nil, models.NewOpError(opGenerate, models.ErrMalformedResponse, "", errors.New(`payload has no "success" field`))
	}
	if !*payload.Success {
		msg := payload.Error
		if msg == "" {
			msg = "classifier reported failure"
		}
		return nil, models.NewOpError(opGenerate, models.ErrServiceFailure, "", errors.New(msg))
	}

	requested := make(map[string]bool, len(files))
	for _, f := range files {
		requested[f.Name] = true
	}

	names := make(map[string]string, len(payload.GeneratedNames))
	var warnings []string
	for oldName, newName := range payload.GeneratedNames {
		if !requested[oldName] {
			o.warn(ctx, &warnings, fmt.Sprintf("ignored name for unknown file %q", oldName))
			continue
		}
		names[oldName] = newName
	}
	return names, nil
}

// gate applies the usage policy and credential check for an online request
// and returns the effective mode.
func (o *Orchestrator) gate(ctx context.Context, op string, mode models.Mode) (models.Mode, error) {
	o.governor.SetMode(mode)

	if mode.IsOnline() {
		limits := o.governor.CheckLimits()
		if !limits.CanProceed {
			if o.policy == models.PolicyFailFast {
				return mode, models.NewOpError(op, models.ErrRateLimited, "", fmt.Errorf(
					"tokens %d/%d, calls %d/%d", limits.TokenUsage, limits.TokenLimit, limits.CallUsage, limits.CallLimit))
			}
			mode = models.ModeOffline
			o.governor.SetMode(mode)
			o.logger.Warn(ctx, "usage limits exceeded, switching to offline mode", logging.Fields{
				"token_usage": limits.TokenUsage,
				"call_usage":  limits.CallUsage,
			})
			o.emit(Event{
				Type:    EventModeSwitched,
				Mode:    mode,
				Message: "usage limits exceeded; switched to offline mode",
				Limits:  limits,
			})
		}
	}

	if mode.IsOnline() {
		if _, ok := o.credentials.Lookup(); !ok {
			return mode, models.NewOpError(op, models.ErrMissingCredential, "",
				fmt.Errorf("%s is not set", o.credentials.Name()))
		}
	}
	return mode, nil
}

// run validates and sends req, routes signals and decodes the payload into v
func (o *Orchestrator) run(ctx context.Context, op, path string, req classifier.Request, v any) error {
	if err := req.Validate(); err != nil {
		return models.NewOpError(op, models.ErrInvalidRequest, path, err)
	}

	if req.OnlineMode {
		o.governor.RecordCall(false)
	}
	sink := o.newSink(ctx, req.OnlineMode)

	lines, err := o.service.Invoke(ctx, req)
	if err != nil {
		o.logger.Error(ctx, "classifier invocation failed", err, logging.Fields{"action": string(req.Action)})
		return models.NewOpError(op, models.ErrServiceFailure, path, err)
	}

	if _, err := extract.Decode(lines, sink, o.extractOpts, v); err != nil {
		o.logger.Error(ctx, "no payload in classifier output", err, logging.Fields{
			"action": string(req.Action),
			"lines":  len(lines),
		})
		return models.NewOpError(op, models.ErrMalformedResponse, path, err)
	}
	return nil
}

func (o *Orchestrator) warn(ctx context.Context, warnings *[]string, msg string) {
	*warnings = append(*warnings, msg)
	o.logger.Warn(ctx, msg, nil)
	o.emit(Event{Type: EventWarning, Mode: o.governor.Mode(), Message: msg})
}

type planEntry struct {
	SrcPath string `json:"src_path"`
	DstPath string `json:"dst_path"`
}

// validateEntry returns the normalized item, or a non-empty reason to drop it
func validateEntry(ctx context.Context, backend *storage.Local, raw json.RawMessage) (plan.Item, string) {
	var entry planEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return plan.Item{}, "not an object with string src_path and dst_path"
	}
	if entry.SrcPath == "" || entry.DstPath == "" {
		return plan.Item{}, "missing src_path or dst_path"
	}

	root := backend.Root()
	src := entry.SrcPath
	if !platform.IsAbsolute(src) {
		src = filepath.Join(root, filepath.FromSlash(src))
	}
	src = platform.NormalizePath(src)
	if !backend.IsRegularFile(ctx, src) {
		return plan.Item{}, fmt.Sprintf("source %s is not an existing file in %s", entry.SrcPath, root)
	}

	dst := entry.DstPath
	if platform.IsAbsolute(dst) {
		rel, err := platform.RelWithin(root, dst)
		if err != nil {
			return plan.Item{}, fmt.Sprintf("destination %s is outside %s", entry.DstPath, root)
		}
		dst = rel
	}
	cleaned, err := platform.CleanRelative(dst)
	if err != nil {
		return plan.Item{}, fmt.Sprintf("destination %s: %v", entry.DstPath, err)
	}

	return plan.Item{SrcPath: src, DstPath: cleaned}, ""
}

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"archivist/internal/archive"
	"archivist/internal/config"
	"archivist/internal/jobs"
	"archivist/internal/logging"
	"archivist/internal/settings"
)

// ErrNotAccepting is returned while the scheduler is starting up or
// shutting down.
var ErrNotAccepting = errors.New("scheduler is not accepting jobs")

// CreateRequest describes a new transfer. DestDir defaults to the data
// root. Overrides layer on top of persisted settings, which layer on top
// of the configured defaults.
type CreateRequest struct {
	Identifier string
	Files      []string
	Glob       string
	Format     string
	DestDir    string
	Overrides  OptionOverrides
}

// OptionOverrides carries per-request option changes. Nil fields keep the
// lower layers' values.
type OptionOverrides struct {
	SkipExisting       *bool
	VerifyChecksum     *bool
	Retries            *int
	TimeoutSeconds     *int
	Flatten            *bool
	PreserveTimestamps *bool
	IncludeDerivatives *bool
	Sources            []string
	ExcludeSources     []string
	ExcludeGlob        string
}

// Create validates the request, persists a pending job, registers it, and
// starts its lifecycle goroutine. The returned snapshot is the caller's.
func (s *Scheduler) Create(ctx context.Context, req CreateRequest) (*jobs.Job, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}

	s.mu.Lock()
	accepting := s.accepting
	s.mu.Unlock()
	if !accepting {
		return nil, ErrNotAccepting
	}

	destDir, err := s.resolveDestination(req.DestDir)
	if err != nil {
		return nil, err
	}
	options := s.resolveOptions(ctx, req.Overrides)
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	job := &jobs.Job{
		ID:         newJobID(),
		Kind:       jobs.KindTransfer,
		Status:     jobs.StatusPending,
		Identifier: identifier,
		DestDir:    destDir,
		CreatedAt:  time.Now().UTC(),
	}
	if len(req.Files) == 1 {
		job.FileName = req.Files[0]
	}

	if err := s.store.Create(ctx, job, string(optionsJSON)); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	s.mu.Lock()
	s.active[job.ID] = job
	s.mu.Unlock()

	if err := s.settings.Set(ctx, settings.KeyLastDestination, destDir); err != nil {
		s.logger.Warn("persist last destination failed", logging.Error(err))
	}

	snapshot := job.Clone()
	s.hub.PublishJob(snapshot)
	s.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldIdentifier, identifier),
		logging.String("destination", destDir))

	selection := archive.Selection{
		Files:              req.Files,
		Glob:               req.Glob,
		Format:             req.Format,
		Sources:            options.Sources,
		ExcludeSources:     options.ExcludeSources,
		ExcludeGlob:        options.ExcludeGlob,
		IncludeDerivatives: options.IncludeDerivatives,
	}
	s.wg.Add(1)
	go s.run(job, selection, options)

	return snapshot, nil
}

// newJobID assigns the short opaque job token.
func newJobID() string {
	return uuid.New().String()[:8]
}

// resolveDestination expands the requested directory and rejects anything
// outside the configured data root. An empty request means the root
// itself.
func (s *Scheduler) resolveDestination(requested string) (string, error) {
	root := s.cfg.Paths.DataDir
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return root, nil
	}
	expanded, err := config.ExpandPath(requested)
	if err != nil {
		return "", fmt.Errorf("invalid destination: %w", err)
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(root, expanded)
	}
	expanded = filepath.Clean(expanded)
	rel, err := filepath.Rel(root, expanded)
	if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
		return "", fmt.Errorf("destination %q is outside the data root", requested)
	}
	return expanded, nil
}

// resolveOptions merges the three option layers: configured defaults,
// persisted settings, then per-request overrides.
func (s *Scheduler) resolveOptions(ctx context.Context, overrides OptionOverrides) jobs.Options {
	transfers := s.cfg.Transfers
	options := jobs.Options{
		SkipExisting:       transfers.SkipExisting,
		VerifyChecksum:     transfers.VerifyChecksum,
		Retries:            transfers.Retries,
		TimeoutSeconds:     transfers.TimeoutSeconds,
		Flatten:            transfers.Flatten,
		PreserveTimestamps: transfers.PreserveTimestamps,
		IncludeDerivatives: transfers.IncludeDerivatives,
	}

	persisted, err := s.settings.TransferDefaultsOverlay(ctx)
	if err != nil {
		s.logger.Warn("load persisted transfer defaults failed", logging.Error(err))
	} else {
		applyBool(&options.SkipExisting, persisted.SkipExisting)
		applyBool(&options.VerifyChecksum, persisted.VerifyChecksum)
		applyInt(&options.Retries, persisted.Retries)
		applyInt(&options.TimeoutSeconds, persisted.TimeoutSeconds)
		applyBool(&options.PreserveTimestamps, persisted.PreserveTimestamps)
		applyBool(&options.IncludeDerivatives, persisted.IncludeDerivatives)
	}

	applyBool(&options.SkipExisting, overrides.SkipExisting)
	applyBool(&options.VerifyChecksum, overrides.VerifyChecksum)
	applyInt(&options.Retries, overrides.Retries)
	applyInt(&options.TimeoutSeconds, overrides.TimeoutSeconds)
	applyBool(&options.Flatten, overrides.Flatten)
	applyBool(&options.PreserveTimestamps, overrides.PreserveTimestamps)
	applyBool(&options.IncludeDerivatives, overrides.IncludeDerivatives)
	if len(overrides.Sources) > 0 {
		options.Sources = overrides.Sources
	}
	if len(overrides.ExcludeSources) > 0 {
		options.ExcludeSources = overrides.ExcludeSources
	}
	if overrides.ExcludeGlob != "" {
		options.ExcludeGlob = overrides.ExcludeGlob
	}

	if options.Retries < 0 {
		options.Retries = 0
	}
	if options.TimeoutSeconds < 0 {
		options.TimeoutSeconds = 0
	}
	return options
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

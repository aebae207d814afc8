// Package upload validates a form, fans its staged files out to object storage
// and reports each file's outcome.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"uploader/internal/selection"
	"uploader/internal/storage"
)

// ResetPolicy decides what happens to the form once a batch has settled.
type ResetPolicy string

const (
	// ResetOnSuccess clears the form only when every file succeeded. After a
	// partial failure the selection stays and only the failed files remain staged.
	ResetOnSuccess ResetPolicy = "on_success"

	// ResetAlways clears the form whatever the outcome.
	ResetAlways ResetPolicy = "always"
)

func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch p := ResetPolicy(s); p {
	case ResetOnSuccess, ResetAlways:
		return p, nil
	case "":
		return ResetOnSuccess, nil
	}
	return "", fmt.Errorf("unknown reset policy %q", s)
}

// Result is the settled outcome of one staged file.
type Result struct {
	File string `json:"file"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
	Err  error  `json:"-"`
}

func (r Result) Succeeded() bool { return r.Err == nil }

// Report is what a dispatched submit produced, one Result per staged file in
// staging order.
type Report struct {
	Results []Result
	// Reset is true when the form was cleared afterwards.
	Reset bool
}

func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Succeeded() {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *Report) AllSucceeded() bool {
	return len(r.Failed()) == 0
}

type Orchestrator struct {
	storage  storage.Provider
	bucket   storage.Bucket
	notifier Notifier
	policy   ResetPolicy
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator to an explicitly constructed storage
// client. notifier receives every notification of every submit and may be nil.
func NewOrchestrator(provider storage.Provider, bucket storage.Bucket, notifier Notifier, policy ResetPolicy, logger *slog.Logger) *Orchestrator {
	if policy == "" {
		policy = ResetOnSuccess
	}
	return &Orchestrator{
		storage:  provider,
		bucket:   bucket,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		tracer:   otel.Tracer("uploader/upload"),
		now:      time.Now,
	}
}

// Submit runs validate -> dispatch -> settle -> reset on form.
//
// When validation fails it returns a *ValidationError, emits one error
// notification per problem and leaves form untouched. Otherwise every staged file
// is uploaded concurrently and independently; a failing file never cancels the
// others, and a cancelled ctx does not abort uploads already in flight. The
// returned Report carries each file's *UploadError, if any, and the error is nil.
//
// extra notifiers receive this submit's notifications only.
func (o *Orchestrator) Submit(ctx context.Context, form *selection.Form, extra ...Notifier) (*Report, error) {
	notifier := append(Notifiers{o.notifier}, extra...)
	state := form.State()
	files := form.Files()

	if problems := validate(state, files); len(problems) > 0 {
		for _, problem := range problems {
			notifier.Notify(ctx, Notification{Kind: KindError, Message: problem, At: o.now()})
		}
		o.logger.WarnContext(ctx, "Submit rejected", "problems", problems)
		return nil, &ValidationError{Problems: problems}
	}

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "upload.Submit",
		trace.WithAttributes(attribute.Int("upload.files", len(files))))
	defer span.End()

	branch := ""
	if state.Branch != nil {
		branch = state.Branch.Name
	}

	o.logger.InfoContext(ctx, "Dispatching uploads",
		"region", state.Region.Name,
		"business", state.Business.Name,
		"branch", branch,
		"files", len(files),
	)

	results := make([]Result, len(files))
	var g errgroup.Group
	for i, file := range files {
		key := BuildKey(state.Region.Name, state.Business.Name, branch, file.Name)
		results[i] = Result{File: file.Name, Key: key, Size: file.Size}

		g.Go(func() error {
			results[i].ETag, results[i].Err = o.uploadOne(ctx, notifier, key, file)
			return results[i].Err
		})
	}
	// Wait only returns the first error; every outcome is already in results.
	_ = g.Wait()

	report := &Report{Results: results}
	failed := len(report.Failed())
	span.SetAttributes(attribute.Int("upload.failed", failed))

	if failed == 0 || o.policy == ResetAlways {
		form.Reset()
		report.Reset = true
	} else {
		form.RetainFiles(func(index int, _ selection.StagedFile) bool {
			return !results[index].Succeeded()
		})
		span.SetStatus(codes.Error, "some uploads failed")
	}

	o.logger.InfoContext(ctx, "Uploads settled",
		"succeeded", len(files)-failed,
		"failed", failed,
		"reset", report.Reset,
	)
	return report, nil
}

func (o *Orchestrator) uploadOne(ctx context.Context, notifier Notifier, key string, file selection.StagedFile) (string, error) {
	ctx, span := o.tracer.Start(ctx, "upload.File", trace.WithAttributes(
		attribute.String("upload.key", key),
		attribute.Int64("upload.size", file.Size),
	))
	defer span.End()

	base := Notification{
		File:   file.Name,
		Key:    key,
		Bucket: string(o.bucket),
		Size:   file.Size,
	}

	loading := base
	loading.Kind, loading.Message, loading.At = KindLoading, MsgUploading, o.now()
	notifier.Notify(ctx, loading)

	info, err := o.storage.Upload(ctx, storage.Object{
		Bucket:      o.bucket,
		Key:         key,
		Body:        bytes.NewReader(file.Content),
		Size:        int64(len(file.Content)),
		ContentType: file.ContentType,
	})
	if err != nil {
		uploadErr := &UploadError{File: file.Name, Key: key, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		o.logger.ErrorContext(ctx, "Upload failed", "file", file.Name, "key", key, "error", err)

		failed := base
		failed.Kind, failed.Message, failed.Reason, failed.At = KindError, MsgUploadFailed, err.Error(), o.now()
		notifier.Notify(ctx, failed)
		return "", uploadErr
	}

	o.logger.DebugContext(ctx, "Upload succeeded", "file", file.Name, "key", key, "etag", info.ETag)
	done := base
	done.Kind, done.Message, done.At = KindSuccess, MsgUploaded, o.now()
	notifier.Notify(ctx, done)
	return info.ETag, nil
}

// validate reports every missing requirement, in a fixed order. The branch is optional.
func validate(state selection.State, files []selection.StagedFile) []string {
	var problems []string
	if len(files) == 0 {
		problems = append(problems, MsgMissingFiles)
	}
	if state.Region == nil {
		problems = append(problems, MsgMissingRegion)
	}
	if state.Business == nil {
		problems = append(problems, MsgMissingBusiness)
	}
	return problems
}

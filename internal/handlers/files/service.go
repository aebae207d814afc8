package files

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"uploader/internal/errors"
	"uploader/internal/selection"
	"uploader/internal/session"
)

// FormField is the multipart field carrying picked files.
const FormField = "files"

// FileConstraint limits what may be staged. Zero sizes and an empty
// AllowedMimeTypes mean no limit.
type FileConstraint struct {
	MaxSize          int64 // per file
	MaxRequestSize   int64 // whole multipart body
	MaxSessionSize   int64 // all files staged in one session
	AllowedMimeTypes []string
}

type StagedFileView struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func Views(files []selection.StagedFile) []StagedFileView {
	views := make([]StagedFileView, len(files))
	for i, f := range files {
		views[i] = StagedFileView{Index: i, Name: f.Name, Size: f.Size, ContentType: f.ContentType}
	}
	return views
}

type service struct {
	store      session.Store
	constraint FileConstraint
	logger     *slog.Logger
}

func NewFileService(store session.Store, constraint FileConstraint, logger *slog.Logger) *service {
	return &service{
		store:      store,
		constraint: constraint,
		logger:     logger,
	}
}

// Stage reads every part of a multipart request and appends the files, in order,
// to the session. Either all parts are staged or none.
//
// The session must exist before any part is read.
func (s *service) Stage(ctx context.Context, sessionID string, reader *multipart.Reader) ([]StagedFileView, error) {
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return nil, SessionError(err)
	}

	var staged []selection.StagedFile
	var stagedBytes int64
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, bodyError("Malformed multipart body", err)
		}
		if part.FormName() != FormField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		file, err := s.read(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		staged = append(staged, file)
		stagedBytes += file.Size
		if limit := s.constraint.MaxSessionSize; limit > 0 && stagedBytes > limit {
			return nil, sessionLimitError(limit)
		}
	}

	if len(staged) == 0 {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("No files found in the %q field", FormField), nil)
	}

	var views []StagedFileView
	err := s.store.Update(ctx, sessionID, func(form *selection.Form) error {
		if limit := s.constraint.MaxSessionSize; limit > 0 && lo.SumBy(form.Files(), fileSize)+stagedBytes > limit {
			return sessionLimitError(limit)
		}
		form.AddFiles(staged...)
		views = Views(form.Files())
		return nil
	})
	if err != nil {
		return nil, SessionError(err)
	}

	s.logger.InfoContext(ctx, "Staged files", "session_id", sessionID, "count", len(staged))
	return views, nil
}

func (s *service) Remove(ctx context.Context, sessionID string, index int) ([]StagedFileView, error) {
	var views []StagedFileView
	err := s.store.Update(ctx, sessionID, func(form *selection.Form) error {
		form.RemoveFile(index)
		views = Views(form.Files())
		return nil
	})
	if err != nil {
		return nil, SessionError(err)
	}
	return views, nil
}

func (s *service) read(part *multipart.Part) (selection.StagedFile, error) {
	name := part.FileName()

	limit := s.constraint.MaxSize
	var src io.Reader = part
	if limit > 0 {
		src = io.LimitReader(part, limit+1)
	}
	content, err := io.ReadAll(src)
	if err != nil {
		return selection.StagedFile{}, bodyError("Failed to read uploaded file", err)
	}
	if limit > 0 && int64(len(content)) > limit {
		return selection.StagedFile{}, errors.New(errors.ErrTooLarge,
			fmt.Sprintf("File %q exceeds the %d byte limit", name, limit), nil)
	}

	contentType := detectContentType(part.Header.Get("Content-Type"), content)
	if len(s.constraint.AllowedMimeTypes) > 0 && !slices.Contains(s.constraint.AllowedMimeTypes, baseType(contentType)) {
		return selection.StagedFile{}, errors.New(errors.ErrInvalidInput,
			fmt.Sprintf("File type '%s' is not allowed", baseType(contentType)), nil)
	}

	return selection.StagedFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func fileSize(f selection.StagedFile) int64 { return f.Size }

func sessionLimitError(limit int64) error {
	return errors.New(errors.ErrTooLarge, fmt.Sprintf("Staged files would exceed the %d byte session limit", limit), nil)
}

// bodyError reports a body cut off by http.MaxBytesReader as too large and any
// other read failure as bad input.
func bodyError(msg string, err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.New(errors.ErrTooLarge, fmt.Sprintf("Request body exceeds the %d byte limit", maxErr.Limit), err)
	}
	return errors.New(errors.ErrInvalidInput, msg, err)
}

// detectContentType trusts the client's declared type unless it is missing or the
// generic octet-stream, then sniffs the content.
func detectContentType(declared string, content []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(content).String()
}

func baseType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(base)
}

// SessionError maps session store failures to AppErrors.
func SessionError(err error) error {
	switch {
	case stderrors.Is(err, session.ErrNotFound):
		return errors.New(errors.ErrNotFound, "Session not found", err)
	case stderrors.Is(err, session.ErrConflict):
		return errors.New(errors.ErrConflict, "Session was modified concurrently, please retry", err)
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.New(errors.ErrInternal, "Failed to update session", err)
}

package sessions

import (
	"context"
	stderrors "errors"
	"log/slog"

	"uploader/internal/catalog"
	"uploader/internal/database/postgresql"
	"uploader/internal/errors"
	"uploader/internal/handlers/files"
	"uploader/internal/selection"
	"uploader/internal/session"
	"uploader/internal/upload"
)

const historyLimit = 50

// NotifierFactory builds the notifier that follows one session's submits.
type NotifierFactory interface {
	ForSession(sessionID, userID string) upload.Notifier
}

type HistoryReader interface {
	History(ctx context.Context, sessionID string, limit int) ([]postgresql.Entry, error)
}

type SessionsService interface {
	Create(ctx context.Context) (SessionResponse, error)
	Get(ctx context.Context, id string) (SessionResponse, error)
	Delete(ctx context.Context, id string) error
	SelectRegion(ctx context.Context, id string, regionID *int) (SessionResponse, error)
	SelectBusiness(ctx context.Context, id string, businessID *int) (SessionResponse, error)
	SelectBranch(ctx context.Context, id string, branchID *int) (SessionResponse, error)
	Reset(ctx context.Context, id string) (SessionResponse, error)
	Submit(ctx context.Context, id, userID string) (SubmitResponse, error)
	History(ctx context.Context, id string) ([]postgresql.Entry, error)
}

type svc struct {
	store        session.Store
	catalog      *catalog.Catalog
	orchestrator *upload.Orchestrator
	notifiers    []NotifierFactory
	history      HistoryReader
	logger       *slog.Logger
}

// NewSessionsService wires the form sessions. history may be nil, in which case
// History reports NOT_FOUND.
func NewSessionsService(store session.Store, cat *catalog.Catalog, orchestrator *upload.Orchestrator, history HistoryReader, logger *slog.Logger, notifiers ...NotifierFactory) SessionsService {
	return &svc{
		store:        store,
		catalog:      cat,
		orchestrator: orchestrator,
		notifiers:    notifiers,
		history:      history,
		logger:       logger,
	}
}

func (s *svc) Create(ctx context.Context) (SessionResponse, error) {
	id, err := s.store.Create(ctx)
	if err != nil {
		return SessionResponse{}, errors.New(errors.ErrInternal, "Failed to create session", err)
	}
	s.logger.InfoContext(ctx, "Session created", "session_id", id)
	return newSessionResponse(id, s.catalog, selection.New()), nil
}

func (s *svc) Get(ctx context.Context, id string) (SessionResponse, error) {
	form, err := s.store.Get(ctx, id)
	if err != nil {
		return SessionResponse{}, files.SessionError(err)
	}
	return newSessionResponse(id, s.catalog, form), nil
}

func (s *svc) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return files.SessionError(err)
	}
	return nil
}

func (s *svc) SelectRegion(ctx context.Context, id string, regionID *int) (SessionResponse, error) {
	var region *catalog.Region
	if regionID != nil {
		r, ok := s.catalog.Region(*regionID)
		if !ok {
			return SessionResponse{}, errors.New(errors.ErrInvalidInput, "Unknown region", nil)
		}
		region = &r
	}

	return s.update(ctx, id, func(form *selection.Form) error {
		form.SelectRegion(region)
		return nil
	})
}

func (s *svc) SelectBusiness(ctx context.Context, id string, businessID *int) (SessionResponse, error) {
	return s.update(ctx, id, func(form *selection.Form) error {
		var business *catalog.Business
		if businessID != nil {
			business = &catalog.Business{ID: *businessID}
		}
		return form.SelectBusiness(business)
	})
}

func (s *svc) SelectBranch(ctx context.Context, id string, branchID *int) (SessionResponse, error) {
	return s.update(ctx, id, func(form *selection.Form) error {
		var branch *catalog.Branch
		if branchID != nil {
			branch = &catalog.Branch{ID: *branchID}
		}
		return form.SelectBranch(branch)
	})
}

func (s *svc) Reset(ctx context.Context, id string) (SessionResponse, error) {
	return s.update(ctx, id, func(form *selection.Form) error {
		form.Reset()
		return nil
	})
}

func (s *svc) Submit(ctx context.Context, id, userID string) (SubmitResponse, error) {
	recorder := &upload.Recorder{}
	notifiers := []upload.Notifier{recorder}
	for _, factory := range s.notifiers {
		notifiers = append(notifiers, factory.ForSession(id, userID))
	}

	var (
		report *upload.Report
		view   SessionResponse
	)
	err := s.store.Update(ctx, id, func(form *selection.Form) error {
		r, err := s.orchestrator.Submit(ctx, form, notifiers...)
		if err != nil {
			return err
		}
		report = r
		view = newSessionResponse(id, s.catalog, form)
		return nil
	})

	var validationErr *upload.ValidationError
	switch {
	case stderrors.As(err, &validationErr):
		return SubmitResponse{}, errors.New(errors.ErrInvalidInput, "Submission is incomplete", err).
			WithDetails(recorder.Notifications())
	case err != nil && report != nil:
		// Files went out but the session moved on meanwhile; the outcome is still reported.
		s.logger.WarnContext(ctx, "Session changed during submit", "session_id", id, "error", err)
		return SubmitResponse{}, errors.New(errors.ErrConflict, "Session changed while uploading; it was not updated", err).
			WithDetails(newSubmitResponse(report, recorder.Notifications(), SessionResponse{ID: id}))
	case err != nil:
		return SubmitResponse{}, files.SessionError(err)
	}

	resp := newSubmitResponse(report, recorder.Notifications(), view)
	if len(report.Results) > 0 && len(report.Failed()) == len(report.Results) {
		return resp, errors.New(errors.ErrUploadFailed, "Every upload failed", report.Failed()[0].Err).WithDetails(resp)
	}
	return resp, nil
}

func (s *svc) History(ctx context.Context, id string) ([]postgresql.Entry, error) {
	if s.history == nil {
		return nil, errors.New(errors.ErrNotFound, "Upload history is not enabled", nil)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, files.SessionError(err)
	}
	entries, err := s.history.History(ctx, id, historyLimit)
	if err != nil {
		return nil, errors.New(errors.ErrInternal, "Failed to load upload history", err)
	}
	if entries == nil {
		entries = []postgresql.Entry{}
	}
	return entries, nil
}

func (s *svc) update(ctx context.Context, id string, fn func(*selection.Form) error) (SessionResponse, error) {
	var view SessionResponse
	err := s.store.Update(ctx, id, func(form *selection.Form) error {
		if err := fn(form); err != nil {
			return selectionError(err)
		}
		view = newSessionResponse(id, s.catalog, form)
		return nil
	})
	if err != nil {
		return SessionResponse{}, files.SessionError(err)
	}
	return view, nil
}

func selectionError(err error) error {
	switch {
	case stderrors.Is(err, selection.ErrNoRegion):
		return errors.New(errors.ErrInvalidInput, "Select a region first", err)
	case stderrors.Is(err, selection.ErrNoBusiness):
		return errors.New(errors.ErrInvalidInput, "Select a business first", err)
	case stderrors.Is(err, selection.ErrNotInParent):
		return errors.New(errors.ErrInvalidInput, "Not available for the current selection", err)
	}
	return err
}

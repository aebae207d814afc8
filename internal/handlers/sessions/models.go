package sessions

import (
	"uploader/internal/catalog"
	"uploader/internal/handlers/files"
	"uploader/internal/selection"
	"uploader/internal/upload"
)

// PickRequest selects one catalog item by id.
type PickRequest struct {
	ID int `json:"id" validate:"gt=0"`
}

// SessionResponse is the form as the page renders it: the current picks, the
// options each dropdown may offer and the staged files.
type SessionResponse struct {
	ID         string                 `json:"id"`
	Region     *catalog.Option        `json:"region"`
	Business   *catalog.Option        `json:"business"`
	Branch     *catalog.Option        `json:"branch"`
	Regions    []catalog.Option       `json:"regions"`
	Businesses []catalog.Option       `json:"businesses"`
	Branches   []catalog.Option       `json:"branches"`
	Files      []files.StagedFileView `json:"files"`
}

type ResultResponse struct {
	File   string `json:"file"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SubmitResponse struct {
	Results       []ResultResponse      `json:"results"`
	Notifications []upload.Notification `json:"notifications"`
	Reset         bool                  `json:"reset"`
	Session       SessionResponse       `json:"session"`
}

func newSessionResponse(id string, cat *catalog.Catalog, form *selection.Form) SessionResponse {
	state := form.State()
	return SessionResponse{
		ID:         id,
		Region:     option(state.Region),
		Business:   option(state.Business),
		Branch:     option(state.Branch),
		Regions:    catalog.Options(cat.Regions),
		Businesses: orEmpty(form.VisibleBusinesses()),
		Branches:   orEmpty(form.VisibleBranches()),
		Files:      files.Views(form.Files()),
	}
}

func newSubmitResponse(report *upload.Report, notes []upload.Notification, session SessionResponse) SubmitResponse {
	results := make([]ResultResponse, len(report.Results))
	for i, r := range report.Results {
		results[i] = ResultResponse{
			File:   r.File,
			Key:    r.Key,
			Size:   r.Size,
			ETag:   r.ETag,
			Status: string(upload.KindSuccess),
		}
		if r.Err != nil {
			results[i].Status = string(upload.KindError)
			results[i].Error = upload.MsgUploadFailed
		}
	}
	return SubmitResponse{
		Results:       results,
		Notifications: notes,
		Reset:         report.Reset,
		Session:       session,
	}
}

func option[T catalog.Item](item *T) *catalog.Option {
	if item == nil {
		return nil
	}
	return &catalog.Option{ID: (*item).ItemID(), Name: (*item).ItemName()}
}

func orEmpty(options []catalog.Option) []catalog.Option {
	if options == nil {
		return []catalog.Option{}
	}
	return options
}

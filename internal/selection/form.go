// Package selection owns the cascading region -> business -> branch selection and
// the list of files staged for upload within one form session.
//
// The invariant kept by every mutation: a business is only set while a region is
// set and belongs to it, and a branch is only set while a business is set and
// belongs to it. Changing a parent clears everything below it.
package selection

import (
	"encoding/json"
	"errors"

	"github.com/samber/lo"

	"uploader/internal/catalog"
)

var (
	ErrNoRegion    = errors.New("selection: no region selected")
	ErrNoBusiness  = errors.New("selection: no business selected")
	ErrNotInParent = errors.New("selection: item does not belong to the selected parent")
)

// State is the current selection. Nil means "none".
type State struct {
	Region   *catalog.Region   `json:"region,omitempty"`
	Business *catalog.Business `json:"business,omitempty"`
	Branch   *catalog.Branch   `json:"branch,omitempty"`
}

// StagedFile is a picked file waiting to be uploaded.
type StagedFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Form is not safe for concurrent use; the session store serialises access to it.
type Form struct {
	state State
	files []StagedFile
}

func New() *Form {
	return &Form{}
}

// SelectRegion sets the region and clears business and branch. A nil region clears
// the whole selection.
func (f *Form) SelectRegion(r *catalog.Region) {
	f.state = State{}
	if r != nil {
		region := *r
		f.state.Region = &region
	}
}

// SelectBusiness sets the business and clears the branch. The business must belong
// to the selected region. A nil business clears business and branch.
func (f *Form) SelectBusiness(b *catalog.Business) error {
	if f.state.Region == nil {
		return ErrNoRegion
	}
	if b == nil {
		f.state.Business = nil
		f.state.Branch = nil
		return nil
	}

	owned, ok := f.state.Region.Business(b.ID)
	if !ok {
		return ErrNotInParent
	}

	f.state.Business = &owned
	f.state.Branch = nil
	return nil
}

// SelectBranch sets the branch. The branch must belong to the selected business.
// A nil branch clears it.
func (f *Form) SelectBranch(br *catalog.Branch) error {
	if f.state.Business == nil {
		return ErrNoBusiness
	}
	if br == nil {
		f.state.Branch = nil
		return nil
	}

	owned, ok := f.state.Business.Branch(br.ID)
	if !ok {
		return ErrNotInParent
	}

	f.state.Branch = &owned
	return nil
}

// AddFiles appends files in pick order. Duplicates are kept.
func (f *Form) AddFiles(files ...StagedFile) {
	f.files = append(f.files, files...)
}

// RemoveFile drops the file at index. Out of range indexes are ignored.
func (f *Form) RemoveFile(index int) {
	if index < 0 || index >= len(f.files) {
		return
	}
	f.files = append(f.files[:index:index], f.files[index+1:]...)
}

// RetainFiles keeps only the staged files for which keep returns true. The index
// passed to keep is the file's position before filtering.
func (f *Form) RetainFiles(keep func(index int, file StagedFile) bool) {
	f.files = lo.Filter(f.files, func(file StagedFile, index int) bool {
		return keep(index, file)
	})
}

func (f *Form) Reset() {
	f.state = State{}
	f.files = nil
}

// State returns a copy of the current selection.
func (f *Form) State() State {
	return f.state
}

// Files returns a copy of the staged file list.
func (f *Form) Files() []StagedFile {
	return append([]StagedFile(nil), f.files...)
}

// VisibleBusinesses lists the businesses that can be picked, or nil while no
// region is selected.
func (f *Form) VisibleBusinesses() []catalog.Option {
	if f.state.Region == nil {
		return nil
	}
	return catalog.Options(f.state.Region.Businesses)
}

// VisibleBranches lists the branches that can be picked, or nil while no business
// is selected.
func (f *Form) VisibleBranches() []catalog.Option {
	if f.state.Business == nil {
		return nil
	}
	return catalog.Options(f.state.Business.Branches)
}

func (f *Form) Clone() *Form {
	return &Form{
		state: f.state,
		files: f.Files(),
	}
}

type formJSON struct {
	State State        `json:"state"`
	Files []StagedFile `json:"files"`
}

func (f *Form) MarshalJSON() ([]byte, error) {
	return json.Marshal(formJSON{State: f.state, Files: f.files})
}

func (f *Form) UnmarshalJSON(data []byte) error {
	var raw formJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.state = raw.State
	f.files = raw.Files
	return nil
}

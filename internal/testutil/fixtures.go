package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"uploader/internal/catalog"
	"uploader/internal/selection"
)

// StagedFile builds a text file whose content is its own name.
func StagedFile(name string) selection.StagedFile {
	content := []byte(fmt.Sprintf("contents of %s", name))
	return selection.StagedFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "text/plain; charset=utf-8",
		Content:     content,
	}
}

// NewForm selects the given ids from the default catalog and stages files.
// A zero id leaves that level (and everything below it) unselected.
func NewForm(t *testing.T, regionID, businessID, branchID int, files ...string) *selection.Form {
	t.Helper()
	cat := catalog.Default()
	form := selection.New()

	if regionID == 0 {
		addFiles(form, files)
		return form
	}
	region, ok := cat.Region(regionID)
	require.True(t, ok, "region %d", regionID)
	form.SelectRegion(&region)

	if businessID != 0 {
		business, ok := region.Business(businessID)
		require.True(t, ok, "business %d", businessID)
		require.NoError(t, form.SelectBusiness(&business))

		if branchID != 0 {
			branch, ok := business.Branch(branchID)
			require.True(t, ok, "branch %d", branchID)
			require.NoError(t, form.SelectBranch(&branch))
		}
	}

	addFiles(form, files)
	return form
}

func addFiles(form *selection.Form, names []string) {
	for _, name := range names {
		form.AddFiles(StagedFile(name))
	}
}

package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	refdata "uploader/internal/catalog"
)

func TestGetCatalog(t *testing.T) {
	h := NewCatalogHandler(refdata.Default())
	rec := httptest.NewRecorder()

	h.GetCatalog(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got refdata.Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Regions, 2)
	assert.Equal(t, "Kenya", got.Regions[0].Name)
	assert.Equal(t, "Car 24", got.Regions[0].Businesses[1].Name)
}

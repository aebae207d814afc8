package catalog

import (
	"net/http"

	refdata "uploader/internal/catalog"
	"uploader/internal/json"
)

type CatalogHandler struct {
	catalog *refdata.Catalog
}

func NewCatalogHandler(cat *refdata.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// GetCatalog returns the whole region -> business -> branch tree.
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	json.Write(w, http.StatusOK, h.catalog)
}

package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

// CatalogHandler serves the department and doctor reference data.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler serves c, or catalog.Default() when c is nil.
func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	if c == nil {
		c = catalog.Default()
	}
	return &CatalogHandler{catalog: c}
}

// ListDepartments handles GET /api/catalog/departments.
func (h *CatalogHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"departments": h.catalog.Departments()})
}

// ListDoctors handles GET /api/catalog/departments/{name}/doctors.
func (h *CatalogHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, "invalid department", http.StatusBadRequest)
		return
	}
	dept, ok := h.catalog.Department(name)
	if !ok {
		http.Error(w, "department not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"department": dept,
		"doctors":    h.catalog.DoctorsIn(dept.Name),
	})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

func catalogRouter() chi.Router {
	h := NewCatalogHandler(nil)
	r := chi.NewRouter()
	r.Get("/api/catalog/departments", h.ListDepartments)
	r.Get("/api/catalog/departments/{name}/doctors", h.ListDoctors)
	return r
}

func TestListDepartments(t *testing.T) {
	rec := httptest.NewRecorder()
	catalogRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/departments", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Departments []catalog.Department `json:"departments"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Departments, len(catalog.Default().Departments()))
}

func TestListDoctors(t *testing.T) {
	rec := httptest.NewRecorder()
	catalogRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/departments/physical%20therapy/doctors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Department catalog.Department `json:"department"`
		Doctors    []catalog.Doctor   `json:"doctors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Physical Therapy", body.Department.Name)
	require.Len(t, body.Doctors, 2)
	for _, d := range body.Doctors {
		assert.Equal(t, "Physical Therapy", d.Department)
	}

	rec = httptest.NewRecorder()
	catalogRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/departments/Dermatology/doctors", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

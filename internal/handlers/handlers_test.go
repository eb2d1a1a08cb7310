package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catalog-adaptation-service/internal/cache"
	"catalog-adaptation-service/internal/compliance"
	"catalog-adaptation-service/internal/database"
	"catalog-adaptation-service/internal/mapping"
	"catalog-adaptation-service/internal/repository"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/services"
	"catalog-adaptation-service/internal/synthesis"
	"catalog-adaptation-service/internal/templates"
)

const testTenant = "tenant-a"

type testServer struct {
	router *gin.Engine
	jobs   *services.JobService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, nil))

	lib := schema.NewLibrary()
	registry, err := templates.NewRegistry(lib)
	require.NoError(t, err)

	templateService := services.NewTemplateService(registry, repository.NewTemplateRepository(db), logger)
	adapter := services.NewAdaptationService(
		lib,
		templateService,
		mapping.NewEngine(mapping.DefaultConfig()),
		synthesis.NewEngine(logger, nil),
		compliance.NewValidator(),
		services.DefaultAdaptationConfig(),
		logger,
	)
	jobService := services.NewJobService(
		adapter,
		repository.NewJobRepository(db),
		cache.NewProgressCache(nil, 0),
		nil,
		nil,
		services.DefaultJobServiceConfig(),
		logger,
	)
	t.Cleanup(jobService.Shutdown)

	router := NewRouter(Router{
		Health:         NewHealthHandler(db),
		Templates:      NewTemplateHandler(templateService),
		Adaptation:     NewAdaptationHandler(adapter, 1),
		Jobs:           NewJobHandler(jobService, templateService, 1),
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logger,
	})
	return &testServer{router: router, jobs: jobService}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Tenant-ID", testTenant)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, body, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

const catalogCSV = "SKU,Product Name,Brand,Category,Colour,Price,Image URL\n" +
	"TSH001,Premium Cotton T-Shirt,FashionCo,T-Shirts,Navy Blue,29.99,https://cdn.example.com/tsh001.jpg\n" +
	"TSH002,Classic Polo,FashionCo,T-Shirts,White,39.50,https://cdn.example.com/tsh002.jpg\n" +
	",Missing Sku Row,FashionCo,T-Shirts,Black,10,\n"

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, ServiceName, decode(t, w)["service"])
	}
}

func TestAPI_RequiresTenant(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/marketplaces", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/marketplaces", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 6, decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/templates/namshi", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "namshi", data["marketplace"])
	assert.Equal(t, "2.1.0", data["version"])

	w = s.do(t, http.MethodGet, "/api/v1/templates/etsy", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplates_UpdateAndHistory(t *testing.T) {
	s := newTestServer(t)

	name := "Namshi Fashion"
	w := s.doJSON(t, http.MethodPatch, "/api/v1/templates/namshi", templates.TemplateUpdate{Name: &name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Namshi Fashion", data["name"])
	assert.Equal(t, "2.1.1", data["version"])

	w = s.do(t, http.MethodGet, "/api/v1/templates/namshi/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.doJSON(t, http.MethodPatch, "/api/v1/templates/namshi", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplates_ImportTemplate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/templates/amazon/import-template?format=csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "amazon_import_template.csv")
	assert.NotEmpty(t, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/templates/amazon/import-template?format=parquet", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, "catalog.csv", catalogCSV, nil)
	w := s.do(t, http.MethodPost, "/api/v1/ingest", body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 3, data["totalRows"])
	assert.EqualValues(t, 2, data["validRows"])
	assert.Len(t, data["records"], 2)
	assert.NotEmpty(t, data["errors"])

	body, contentType = multipartUpload(t, "catalog.pdf", "%PDF", nil)
	w = s.do(t, http.MethodPost, "/api/v1/ingest", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdapt(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/v1/adapt", map[string]interface{}{
		"marketplace": "namshi",
		"record": map[string]interface{}{
			"sku":      "TSH001",
			"title":    "Premium Cotton T-Shirt",
			"brand":    "FashionCo",
			"category": "T-Shirts",
			"material": "Cotton",
			"color":    "Navy Blue",
			"price":    29.99,
			"images":   []string{"https://cdn.example.com/tsh001.jpg"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "TSH001", data["sku"])
	assert.Contains(t, data["issues"], "Missing required field: size")
	adapted := data["adapted"].(map[string]interface{})
	assert.Equal(t, "Clothing > Tops > T-Shirts", adapted["category"])

	w = s.doJSON(t, http.MethodPost, "/api/v1/adapt", map[string]interface{}{
		"marketplace": "etsy",
		"record":      map[string]interface{}{"sku": "X"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodPost, "/api/v1/adapt", map[string]interface{}{"record": map[string]interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func waitForJob(t *testing.T, s *testServer, id string) {
	t.Helper()
	jobID, err := uuid.Parse(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.jobs.Wait(ctx, jobID))
}

func TestJobs_JSONLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"marketplace": "amazon",
		"records": []map[string]interface{}{
			{"sku": "A1", "title": "Linen Shirt", "brand": "Acme", "category": "Shirts", "price": 45},
			{"sku": "A2", "title": "Denim Jacket", "brand": "Acme", "category": "Jackets", "price": 120},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode(t, w)["data"].(map[string]interface{})
	id := job["id"].(string)
	assert.EqualValues(t, 2, job["totalItems"])

	waitForJob(t, s, id)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "COMPLETED", body["data"].(map[string]interface{})["status"])
	assert.EqualValues(t, 2, body["progress"].(map[string]interface{})["processed"])

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/results?limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	results := body["data"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "A1", results[0].(map[string]interface{})["sku"])

	w = s.do(t, http.MethodGet, "/api/v1/jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Regexp(t, `^sku,confidence,issues`, w.Body.String())
	assert.Contains(t, w.Body.String(), "A2")

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs_Upload(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, "catalog.csv", catalogCSV, map[string]string{"marketplace": "namshi"})
	w := s.do(t, http.MethodPost, "/api/v1/jobs", body, contentType)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "catalog.csv", job["sourceFile"])
	assert.EqualValues(t, 2, job["totalItems"])
	assert.NotEmpty(t, job["ingestErrors"])

	waitForJob(t, s, job["id"].(string))

	body, contentType = multipartUpload(t, "empty.csv", "SKU,Product Name\n", map[string]string{"marketplace": "namshi"})
	w = s.do(t, http.MethodPost, "/api/v1/jobs", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestJobs_NotFoundAndTenantIsolation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"marketplace": "noon",
		"records":     []map[string]interface{}{{"sku": "N1", "title": "Scarf"}},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["data"].(map[string]interface{})["id"].(string)
	waitForJob(t, s, id)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil)
	req.Header.Set("X-Tenant-ID", "tenant-b")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	w = s.doJSON(t, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"marketplace": "noon",
		"records":     []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

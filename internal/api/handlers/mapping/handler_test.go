package mapping_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlermapping "surveyserver/internal/api/handlers/mapping"
	"surveyserver/internal/api/routes"
	appmapping "surveyserver/internal/application/mapping"
	"surveyserver/internal/config"
	"surveyserver/internal/domain/mapping"
	"surveyserver/internal/infrastructure/cache"
	"surveyserver/internal/infrastructure/persistence"
	"surveyserver/normalization/algorithms"
)

type surveySeeder interface {
	SeedSurvey(ctx context.Context, survey mapping.Survey, rows []mapping.Row) error
}

type testServer struct {
	engine *gin.Engine
	seeder surveySeeder
	store  *persistence.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := persistence.NewSQLiteStore(":memory:", persistence.SQLiteConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rows := persistence.NewSQLiteRowSource(store)
	seeder, ok := rows.(surveySeeder)
	require.True(t, ok)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := appmapping.NewEngine(
		persistence.NewSQLiteMappingRepository(store),
		persistence.NewSQLiteLearnedRepository(store),
		rows,
		algorithms.NewScorer(algorithms.DefaultSimilarityWeights(), 0),
		logger,
	)
	cached := appmapping.NewCachedEngine(engine, cache.New(time.Minute, time.Hour, logger), logger)

	cfg := &config.Config{
		RateLimitRPS:             1000,
		RateLimitBurst:           1000,
		BatchConfidenceThreshold: 0.85,
	}
	handler := handlermapping.NewHandler(cached, store, cfg.BatchConfidenceThreshold, logger)
	router := routes.NewRouter(cfg, handler, logger)

	return &testServer{engine: router.Engine(), seeder: seeder, store: store}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// gzip middleware включен, тесты читают несжатый ответ
	req.Header.Set("Accept-Encoding", "identity")

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func createMappingBody(canonicalName, rawTerm, source string) map[string]interface{} {
	return map[string]interface{}{
		"entity_type":    "specialty",
		"canonical_name": canonicalName,
		"source_entries": []map[string]string{
			{"raw_term": rawTerm, "survey_source": source},
		},
	}
}

func TestHandler_CreateAndListMappings(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology - General", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)

	var created mapping.CanonicalMapping
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Cardiology", created.CanonicalName)

	w = ts.request(t, "GET", "/api/mappings?entity_type=specialty", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Mappings []mapping.CanonicalMapping `json:"mappings"`
		Count    int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestHandler_CreateMapping_Validation(t *testing.T) {
	ts := newTestServer(t)

	// Пустое тело
	w := ts.request(t, "POST", "/api/mappings", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Неизвестный тип сущности
	body := createMappingBody("Cardiology", "Cardiology", "Provider A")
	body["entity_type"] = "bogus"
	w = ts.request(t, "POST", "/api/mappings", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_DuplicateReturns409WithExistingID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created mapping.CanonicalMapping
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiovascular", "cardiology", "Provider A"))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		ExistingID string `json:"existing_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ExistingID)
}

func TestHandler_DeleteMapping(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created mapping.CanonicalMapping
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = ts.request(t, "DELETE", "/api/mappings/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(t, "DELETE", "/api/mappings/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "mapping not found")
}

func TestHandler_StoreUnavailableReturns503(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Close())

	w := ts.request(t, "GET", "/api/mappings?entity_type=specialty", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store unavailable")
}

func TestHandler_UnmappedLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.seeder.SeedSurvey(ctx, mapping.Survey{ID: "s1", Source: "Provider A"}, []mapping.Row{
		{"specialty": "Cardiology - General"},
		{"specialty": "Pediatrics (General)"},
	}))

	w := ts.request(t, "GET", "/api/unmapped?entity_type=specialty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unmapped struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unmapped))
	assert.Equal(t, 2, unmapped.Count)

	w = ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology - General", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)

	// Мутация инвалидировала кэш, следующее чтение видит результат сразу
	w = ts.request(t, "GET", "/api/unmapped?entity_type=specialty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unmapped))
	assert.Equal(t, 1, unmapped.Count)
}

func TestHandler_Suggestions(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Allergy & Immunology", "Allergy & Immunology", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.request(t, "GET", "/api/suggestions?entity_type=specialty&raw_term=Allergy+and+Immunology&survey_source=Provider+B", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Suggestions []mapping.Suggestion `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "Allergy & Immunology", resp.Suggestions[0].CanonicalName)

	// raw_term обязателен
	w = ts.request(t, "GET", "/api/suggestions?entity_type=specialty", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_BatchResolution(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.seeder.SeedSurvey(ctx, mapping.Survey{ID: "s1", Source: "Provider B"}, []mapping.Row{
		{"specialty": "cardiology"},
		{"specialty": "Completely Unrelated"},
	}))
	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.request(t, "POST", "/api/batch-resolution", map[string]interface{}{
		"entity_type": "specialty",
		"threshold":   0.9,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result mapping.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Mapped)
	assert.Equal(t, 1, result.Skipped)
}

func TestHandler_LearnedEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/mappings", createMappingBody("Cardiology", "Cardiology - General", "Provider A"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.request(t, "GET", "/api/learned?entity_type=specialty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	// Групповое удаление по каноническому имени
	w = ts.request(t, "DELETE", "/api/learned", map[string]interface{}{
		"entity_type":    "specialty",
		"canonical_name": "Cardiology",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.request(t, "GET", "/api/learned?entity_type=specialty", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
}

func TestHandler_CacheEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "POST", "/api/cache/prefetch", map[string]interface{}{
		"entity_type": "specialty",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.request(t, "GET", "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalEntries)

	w = ts.request(t, "POST", "/api/cache/clear", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_SimilarityCompare(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "GET", "/api/similarity/compare?s1=Cardiology&s2=cardiology", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1.0, resp.Score)

	w = ts.request(t, "GET", "/api/similarity/compare?s1=Cardiology", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Health(t *testing.T) {
	ts := newTestServer(t)

	w := ts.request(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandler_UnmappedWithGeneratedRows(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	// Синтетическая выгрузка: повторяющиеся значения схлопываются в один термин
	gofakeit.Seed(42)
	specialties := []string{
		gofakeit.JobTitle(), gofakeit.JobTitle(), gofakeit.JobTitle(),
	}
	rows := make([]mapping.Row, 0, 30)
	for i := 0; i < 30; i++ {
		rows = append(rows, mapping.Row{
			"specialty":      specialties[i%len(specialties)],
			"region":         gofakeit.State(),
			"total_comp_p50": fmt.Sprintf("%d", gofakeit.Number(150000, 800000)),
		})
	}
	require.NoError(t, ts.seeder.SeedSurvey(ctx, mapping.Survey{ID: "s1", Source: "Provider X 2025"}, rows))

	w := ts.request(t, "GET", "/api/unmapped?entity_type=specialty", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var unmapped struct {
		Unmapped []mapping.RawTerm `json:"unmapped"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unmapped))
	assert.LessOrEqual(t, unmapped.Count, len(specialties))
	assert.Greater(t, unmapped.Count, 0)

	// Частоты отсортированы по убыванию
	for i := 1; i < len(unmapped.Unmapped); i++ {
		assert.GreaterOrEqual(t, unmapped.Unmapped[i-1].Frequency, unmapped.Unmapped[i].Frequency)
	}
}

package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attrition/adapters/excel"
	"attrition/adapters/llm"
	"attrition/adapters/llm/heuristic"
	"attrition/adapters/model"
	"attrition/adapters/postgres"
	"attrition/ai"
	"attrition/app"
	"attrition/internal/auth"
	"attrition/internal/migration"
	"attrition/internal/session"
	"attrition/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const employeesCSV = "EmployeeID,department,tenure\n1,Sales,2\n2,Eng,8\n3,Sales,5\n"

// departmentModel scores Sales at sigmoid(1) and Eng at sigmoid(-1)
func departmentModel(t *testing.T) *model.Holder {
	t.Helper()
	m, err := model.NewLogisticModel(model.Artifact{
		Version: "test",
		Features: []model.Feature{
			{Name: "department", Levels: map[string]float64{"Sales": 1, "Eng": -1}},
		},
	})
	require.NoError(t, err)
	return model.NewHolder(m)
}

func newTestServer(t *testing.T, client *llm.MockLLMClient, authenticator *auth.Authenticator) http.Handler {
	t.Helper()
	return buildTestServer(t, client, authenticator, nil)
}

// newPersistentTestServer backs the API with an in-memory SQLite repository
func newPersistentTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))

	return buildTestServer(t, &llm.MockLLMClient{}, nil, postgres.NewBatchRepository(db))
}

func buildTestServer(t *testing.T, client *llm.MockLLMClient, authenticator *auth.Authenticator, repo ports.BatchRepository) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	prompts := ai.NewPromptManager("", logger)

	// nil client: heuristic planner only and degraded insights
	var translator *app.FilterTranslator
	insights := app.NewInsightGenerator(nil, prompts, app.InsightConfig{Model: "test"}, logger)
	if client != nil {
		translator = app.NewFilterTranslator(client, prompts, app.TranslatorConfig{Model: "test"}, logger)
		insights = app.NewInsightGenerator(&llm.MockLLMClient{}, prompts, app.InsightConfig{Model: "test"}, logger)
	}

	srv := NewServer(Deps{
		Batches:  app.NewBatchService(app.NewScorer(logger), departmentModel(t), session.NewStore(4), repo, logger),
		Queries:  app.NewQueryService(translator, heuristic.NewPlanner(), logger),
		Insights: insights,
		Reader:   excel.NewDataReader(logger),
		Auth:     authenticator,
		Logger:   logger,
	})
	return srv.Handler()
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// upload posts employeesCSV and returns the batch id
func upload(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := serve(h, uploadRequest(t, "q1.csv", employeesCSV))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Batch struct {
			ID       string `json:"id"`
			Records  int    `json:"record_count"`
			HighRisk int    `json:"high_risk_count"`
		} `json:"batch"`
		Columns []string `json:"columns"`
		Summary app.Summary
	}
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp.Batch.Records)
	assert.Equal(t, 2, resp.Batch.HighRisk)
	assert.Contains(t, resp.Columns, "Attrition_Probability")
	return resp.Batch.ID
}

func TestUploadAndSummary(t *testing.T) {
	h := newTestServer(t, &llm.MockLLMClient{}, nil)
	id := upload(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary app.Summary
	decode(t, rec, &summary)
	assert.Equal(t, 3, summary.TotalEmployees)
	assert.Equal(t, 2, summary.AtRisk)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestUploadRejections(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec := serve(h, uploadRequest(t, "notes.pdf", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, uploadRequest(t, "missing.csv", "EmployeeID,tenure\n1,2\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "SCHEMA_MISMATCH", body.Code)
	assert.Contains(t, body.Error, "department")
}

func TestUnknownBatchAndEmployee(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := upload(t, h)
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/employees/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "employee 99 not found", body.Error)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/employees/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"risk_label":"High Risk"`)
}

func TestQueryEndpoint(t *testing.T) {
	client := &llm.MockLLMClient{Response: `{"department": "Eng"}`}
	h := newTestServer(t, client, nil)
	id := upload(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/query", strings.NewReader(`{"query":"who in engineering?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res app.QueryResult
	decode(t, rec, &res)
	assert.Equal(t, app.PlannerLLM, res.Planner)
	assert.False(t, res.FellBack)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "2", res.Records[0].EmployeeID())
}

func TestQueryFallsBackOnMalformedModelOutput(t *testing.T) {
	h := newTestServer(t, &llm.MockLLMClient{Response: "I cannot help with that"}, nil)
	id := upload(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/query", strings.NewReader(`{"query":"anything"}`))
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res app.QueryResult
	decode(t, rec, &res)
	assert.True(t, res.FellBack)
	assert.Len(t, res.Records, 3)
}

func TestInsightEndpoints(t *testing.T) {
	h := newTestServer(t, &llm.MockLLMClient{}, nil)
	id := upload(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/employees/1/insight?format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one insightResponse
	decode(t, rec, &one)
	assert.False(t, one.Degraded)
	assert.Equal(t, "1", one.EmployeeID)
	assert.Contains(t, one.Insight.Diagnostic, "Engagement")
	assert.Contains(t, one.HTML, "<strong>Diagnostic Insight</strong>")

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/insights/at-risk?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var many struct {
		Insights []insightResponse `json:"insights"`
		Degraded int               `json:"degraded"`
	}
	decode(t, rec, &many)
	require.Len(t, many.Insights, 2)
	assert.Equal(t, "1", many.Insights[0].EmployeeID)
	assert.Equal(t, "3", many.Insights[1].EmployeeID)
	assert.Zero(t, many.Degraded)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/insights/at-risk?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightDegradesWithoutModel(t *testing.T) {
	h := newTestServer(t, nil, nil)
	id := upload(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/employees/2/insight", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out insightResponse
	decode(t, rec, &out)
	assert.True(t, out.Degraded)
	assert.Equal(t, "Analysis unavailable", out.Insight.Diagnostic)
	assert.NotEmpty(t, out.Reason)

	// nothing can be stored without a repository, so no id is handed out
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/employees/2/insight?save=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out = insightResponse{}
	decode(t, rec, &out)
	assert.Empty(t, out.ID)
}

func TestInsightSavedOnlyOnRequest(t *testing.T) {
	h := newPersistentTestServer(t)
	id := upload(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/employees/1/insight", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var unsaved insightResponse
	decode(t, rec, &unsaved)
	assert.Empty(t, unsaved.ID)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/datasets/"+id+"/employees/1/insight?save=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var saved insightResponse
	decode(t, rec, &saved)
	require.NotEmpty(t, saved.ID)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/employees/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Insights []ports.StoredInsight `json:"insights"`
	}
	decode(t, rec, &detail)
	require.Len(t, detail.Insights, 1)
	assert.Equal(t, saved.ID, detail.Insights[0].ID)
}

func TestDeleteDataset(t *testing.T) {
	for name, h := range map[string]http.Handler{
		"memory":     newTestServer(t, nil, nil),
		"repository": newPersistentTestServer(t),
	} {
		t.Run(name, func(t *testing.T) {
			id := upload(t, h)

			rec := serve(h, httptest.NewRequest(http.MethodDelete, "/api/datasets/"+id, nil))
			assert.Equal(t, http.StatusNoContent, rec.Code)

			rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)

			rec = serve(h, httptest.NewRequest(http.MethodDelete, "/api/datasets/"+id, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestExport(t *testing.T) {
	h := newTestServer(t, nil, nil)
	id := upload(t, h)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/export?scope=high_risk", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="q1_scored.csv"`)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Attrition_Probability")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/export?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets/"+id+"/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGuardsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := auth.NewAuthenticator("secret", "analyst:"+string(hash), time.Hour)
	require.NoError(t, err)
	h := newTestServer(t, nil, a)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"analyst","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"analyst","password":"hunter2"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

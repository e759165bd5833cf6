package handler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coding-interface/internal/config"
	"coding-interface/internal/dataset"
	"coding-interface/internal/models"
	"coding-interface/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const codingCSV = `coding_id,original_index,quotation,variable,stablespeaker,ymd,claude_credit_channel,claude_credit_channel_category
A,0,quote a,gdp,Powell,2008-10-01,yes,strong
B,1,quote b,inflation,Yellen,2009-03-15,no,none
C,2,quote c,credit,Bernanke,2008-12-01,yes,moderate
`

func newTestRouter(t *testing.T, withTable bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	store := dataset.NewStore(logger)
	if withTable {
		require.NoError(t, store.LoadReader(strings.NewReader(codingCSV)))
	}

	coder := service.NewCoder(store, config.DefaultTaxonomy(), logger)
	router := gin.New()
	NewHandler(coder, logger).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, router *gin.Engine, path, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionView(t *testing.T, rec *httptest.ResponseRecorder) models.SessionView {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view models.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coding-interface")
}

func TestSessionBlockedWithoutTable(t *testing.T) {
	router := newTestRouter(t, false)

	for _, path := range []string{"/api/v1/session", "/api/v1/progress", "/api/v1/export/csv"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/session/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Uploading a table unblocks the session.
	rec = doUpload(t, router, "/api/v1/dataset", codingCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := sessionView(t, doJSON(t, router, http.MethodGet, "/api/v1/session", nil))
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, "A", view.Item.CodingID)
}

func TestHiddenColumnsNeverSerialized(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "claude_credit_channel")
	assert.NotContains(t, rec.Body.String(), "strong") // Claude's category for item A
}

func TestSaveExportFlow(t *testing.T) {
	router := newTestRouter(t, true)

	view := sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/save", models.SaveRequest{
		CodingID: "A", Classification: "strong", CoderName: "alice",
	}))
	assert.Equal(t, 1, view.Cursor)
	assert.Equal(t, 1, view.LabeledCount)
	assert.Equal(t, "alice", view.CoderName)
	assert.True(t, view.CoderLocked)

	// A different name on the second save is ignored.
	view = sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/save", models.SaveRequest{
		CodingID: "B", Classification: "none", Notes: "note1", CoderName: "bob",
	}))
	assert.Equal(t, "alice", view.CoderName)
	assert.Equal(t, 2, view.LabeledCount)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "coded_alice_financial_accelerator_")
	assert.Empty(t, rec.Header().Get("X-Dropped-Records"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two records")

	header := rows[0]
	assert.Equal(t, "coding_id", header[0])
	coderCol := -1
	for i, col := range header {
		if col == "coder_name" {
			coderCol = i
		}
	}
	require.GreaterOrEqual(t, coderCol, 0)
	assert.Equal(t, "alice", rows[1][coderCol])
	assert.Equal(t, "alice", rows[2][coderCol])
}

func TestSaveValidationErrors(t *testing.T) {
	router := newTestRouter(t, true)

	tests := []struct {
		name string
		req  models.SaveRequest
	}{
		{"unknown classification", models.SaveRequest{CodingID: "A", Classification: "bogus", CoderName: "alice"}},
		{"unknown coding_id", models.SaveRequest{CodingID: "Z", Classification: "strong", CoderName: "alice"}},
		{"notes too long", models.SaveRequest{CodingID: "A", Classification: "strong", Notes: strings.Repeat("x", 501), CoderName: "alice"}},
		{"missing coder name", models.SaveRequest{CodingID: "A", Classification: "strong"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/session/save", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNavigationEndpoints(t *testing.T) {
	router := newTestRouter(t, true)

	view := sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/advance", nil))
	assert.Equal(t, 1, view.Cursor)

	view = sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/retreat", nil))
	assert.Equal(t, 0, view.Cursor)

	view = sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/jump", models.JumpRequest{Position: 99}))
	assert.Equal(t, 2, view.Cursor, "out-of-range jump clamps to the last item")

	view = sessionView(t, doJSON(t, router, http.MethodPost, "/api/v1/session/reset", nil))
	assert.Equal(t, 0, view.Cursor)
}

func TestResumeEndpoint(t *testing.T) {
	router := newTestRouter(t, true)

	t.Run("partial overlap", func(t *testing.T) {
		resume := "coding_id,coder_name,classification,notes,coded_at\n" +
			"A,carol,strong,old note,2026-08-20T10:00:00Z\n" +
			"X,carol,weak,,2026-08-20T10:05:00Z\n"

		rec := doUpload(t, router, "/api/v1/session/resume", resume)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result models.ImportResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Accepted)
		assert.Equal(t, 1, result.Rejected)
		assert.NotEmpty(t, result.Warning)

		view := sessionView(t, doJSON(t, router, http.MethodGet, "/api/v1/session", nil))
		assert.Equal(t, 1, view.Cursor, "cursor at first unlabeled item")
		assert.Equal(t, "carol", view.CoderName)
	})

	t.Run("invalid resume file", func(t *testing.T) {
		rec := doUpload(t, router, "/api/v1/session/resume", "coding_id,notes\nA,whatever\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no matching records", func(t *testing.T) {
		rec := doUpload(t, router, "/api/v1/session/resume", "coding_id,coder_name,classification\nZ,carol,strong\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/session/resume", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadDatasetValidation(t *testing.T) {
	router := newTestRouter(t, true)

	rec := doUpload(t, router, "/api/v1/dataset", "variable,ymd\nx,2020-01-01\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "coding_id")

	// The prior table survives the rejected upload.
	view := sessionView(t, doJSON(t, router, http.MethodGet, "/api/v1/session", nil))
	assert.Equal(t, 3, view.Total)
}

func TestExportReportsDroppedRecords(t *testing.T) {
	router := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/session/save", models.SaveRequest{
		CodingID: "B", Classification: "weak", CoderName: "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Replace the table with one that no longer contains B.
	rec = doUpload(t, router, "/api/v1/dataset", "coding_id,quotation\nA,quote a\n")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Dropped-Records"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only; the orphaned record is dropped")
}

func TestTaxonomyEndpoint(t *testing.T) {
	router := newTestRouter(t, false)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/taxonomy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var taxonomy models.Taxonomy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &taxonomy))
	assert.Equal(t, "none", taxonomy.Default)
	assert.Equal(t, []string{"strong", "weak", "moderate", "none"}, taxonomy.Values())
}

func TestIndexServed(t *testing.T) {
	router := newTestRouter(t, false)

	rec := doJSON(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Financial Accelerator Classification")
}

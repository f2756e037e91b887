package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/middleware"
	"github.com/noah-isme/edu-project-tracker/internal/models"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type workflowBody struct {
	Success     bool                `json:"success"`
	Status      string              `json:"status"`
	TaskID      int64               `json:"task_id"`
	Title       string              `json:"title"`
	IsCompleted bool                `json:"is_completed"`
	Errors      map[string][]string `json:"errors"`
}

// newContext builds a test context for a JSON request with path params.
func newContext(method, target string, body interface{}, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	return c, rec
}

func idParam(id string) gin.Params {
	return gin.Params{{Key: "id", Value: id}}
}

func withAccount(c *gin.Context, id int64, staff bool) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: id, IsStaff: staff})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func decodeWorkflow(t *testing.T, rec *httptest.ResponseRecorder) workflowBody {
	t.Helper()
	var body workflowBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equalf(t, want, rec.Code, "body: %s", rec.Body.String())
}

package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Page{Items: []string{"a"}, Total: 1, Take: 20})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","data":{"items":["a"],"total":1,"skip":0,"take":20}}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "NOT_FOUND", "game not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, &ErrorBody{Code: "NOT_FOUND", Message: "game not found"}, resp.Error)
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		Status string `json:"status"`
	}
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"status":"PLAYING"}`))
	require.NoError(t, ReadJSON(r, &dst))
	assert.Equal(t, "PLAYING", dst.Status)

	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(""))
	assert.EqualError(t, ReadJSON(r, &dst), "request body is empty")

	r = httptest.NewRequest(http.MethodPut, "/", strings.NewReader("{"))
	assert.Error(t, ReadJSON(r, &dst))
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestWriteErrorHidesServerFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("sql: connection refused at 10.0.0.5:5432"), "Failed to list likes")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to list likes", errorBody(t, rec))

	rec = httptest.NewRecorder()
	partial := &services.PartialGraphUpdateError{Op: "follow", FollowerID: "a", FolloweeID: "b", Err: errors.New("disk I/O error")}
	writeError(rec, partial, "Failed to follow user")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to follow user", errorBody(t, rec))
}

func TestWriteErrorExplainsClientErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("post p1: %w", services.ErrNotFound), "Failed to list likes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorBody(t, rec), "post p1")

	rec = httptest.NewRecorder()
	writeError(rec, fmt.Errorf("comment text: %w", services.ErrInvalidOperation), "Failed to add comment")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

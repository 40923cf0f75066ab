package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(Options{Logger: logging.New()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (int, gjson.Result, http.Header) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/evaluate", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, json.Valid(data), "body: %s", data)
	return resp.StatusCode, gjson.ParseBytes(data), resp.Header
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name  string
		body  string
		kind  string
		value string
	}{
		{"literal", `{"formula": "=1+2"}`, "int", "3"},
		{"cells", `{"formula": "=SUM(A1:A3)*B1", "cells": {"A1": 1, "A2": 2, "A3": "=A1+A2", "B1": 0.5}}`, "float", "3"},
		{"sheet", `{"formula": "=UPPER(A1)", "sheet": "Data", "cells": {"A1": "abc"}}`, "string", "ABC"},
		{"names", `{"formula": "=AVERAGE(Scores)", "cells": {"A1": 4, "A2": 8}, "names": {"Scores": "Sheet1!A1:A2"}}`, "float", "6"},
		{"bool", `{"formula": "=A1>1", "cells": {"A1": 2}}`, "bool", "true"},
		{"error value", `{"formula": "=1/0"}`, "error", "#DIV/0!"},
		{"empty", `{"formula": "=A1"}`, "empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, _ := post(t, srv, tc.body)
			require.Equal(t, http.StatusOK, status, body.Raw)
			assert.Equal(t, tc.kind, body.Get("kind").String())
			assert.Equal(t, tc.value, body.Get("value").String())
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{"formula":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing formula", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"parse error", `{"formula": "=SUM("}`, http.StatusBadRequest, "PARSE_ERROR"},
		{"bad cell formula", `{"formula": "=A1", "cells": {"A1": "=(("}}`, http.StatusBadRequest, "PARSE_ERROR"},
		{"bad address", `{"formula": "=1", "cells": {"ZZZZZZ0": 1}}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, header := post(t, srv, tc.body)
			assert.Equal(t, tc.status, status, body.Raw)
			assert.Equal(t, tc.code, body.Get("code").String())
			assert.Equal(t, header.Get("X-Request-Id"), body.Get("request_id").String())
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "run-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "run-42", resp.Header.Get("X-Request-Id"))
}

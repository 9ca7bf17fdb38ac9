// Copyright (C) 2025 Etymon Labs (dev@etymonlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/etymonlab/etymon/services/etymology/datatypes"
)

func newRemote(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Word)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

func unlimited() HTTPOption {
	return WithRateLimit(rate.Inf, 1)
}

func TestHTTPGenerator_CleanResult(t *testing.T) {
	srv := newRemote(t, http.StatusOK, validTestDef())
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, *validTestDef(), *def)
}

func TestHTTPGenerator_PartialOn203(t *testing.T) {
	srv := newRemote(t, http.StatusNonAuthoritativeInfo, brokenTestDef())
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	def, partial, err := g.Generate(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, partial)
	require.NotNil(t, def)
}

func TestHTTPGenerator_RemoteTimeout(t *testing.T) {
	srv := newRemote(t, http.StatusRequestTimeout, generateError{Error: "Request timed out. Please try a shorter word."})
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(context.Background(), "sesquipedalian")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindTimeout, datatypes.KindOf(err))
	assert.Contains(t, err.Error(), "shorter word")
}

func TestHTTPGenerator_RemoteRateLimit(t *testing.T) {
	srv := newRemote(t, http.StatusTooManyRequests, generateError{Error: "quota exhausted"})
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindRateLimited, datatypes.KindOf(err))
}

func TestHTTPGenerator_RemoteFailure(t *testing.T) {
	srv := newRemote(t, http.StatusInternalServerError, generateError{Error: "model unavailable"})
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindUpstream, datatypes.KindOf(err))
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestHTTPGenerator_UnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindUpstream, datatypes.KindOf(err))
}

func TestHTTPGenerator_CanceledContext(t *testing.T) {
	srv := newRemote(t, http.StatusOK, validTestDef())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(ctx, "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindCanceled, datatypes.KindOf(err))
}

func TestHTTPGenerator_ConnectionRefused(t *testing.T) {
	srv := newRemote(t, http.StatusOK, validTestDef())
	srv.Close() // nothing listening anymore

	g := NewHTTPGenerator(srv.URL, unlimited())
	_, _, err := g.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Equal(t, datatypes.KindUpstream, datatypes.KindOf(err))
}

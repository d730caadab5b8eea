package cep

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistorias/pkg/apperr"
)

func newServer(t *testing.T, hits *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/88015100/json/":
			_, _ = w.Write([]byte(`{"cep":"88015-100","logradouro":"Rua Felipe Schmidt","bairro":"Centro","localidade":"Florianópolis","uf":"SC","ibge":"4205407","ddd":"48"}`))
		case "/99999999/json/":
			_, _ = w.Write([]byte(`{"erro": "true"}`))
		case "/11111111/json/":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	var hits int32
	c := NewClient(newServer(t, &hits).URL + "/")

	res, err := c.Lookup(context.Background(), "88015-100")
	require.NoError(t, err)
	assert.Equal(t, "88015100", res.CEP)
	assert.Equal(t, "Florianópolis", res.Cidade)
	assert.Equal(t, "SC", res.Endereco().Estado)

	_, err = c.Lookup(context.Background(), "88015100")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "second lookup is served from cache")
}

func TestLookupErrors(t *testing.T) {
	var hits int32
	c := NewClient(newServer(t, &hits).URL)

	_, err := c.Lookup(context.Background(), "123")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	assert.Zero(t, atomic.LoadInt32(&hits))

	_, err = c.Lookup(context.Background(), "99999-999")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = c.Lookup(context.Background(), "99999999")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits), "misses are not cached")
	assert.Empty(t, c.cache)

	_, err = c.Lookup(context.Background(), "11111111")
	assert.True(t, apperr.Is(err, apperr.CodeExternal))
	_, err = c.Lookup(context.Background(), "11111111")
	assert.True(t, apperr.Is(err, apperr.CodeExternal))
	assert.EqualValues(t, 4, atomic.LoadInt32(&hits), "upstream failures are not cached")
}

func TestCacheBounded(t *testing.T) {
	c := NewClient("http://unused")
	c.max = 2
	c.store("00000001", Resultado{CEP: "00000001"})
	c.store("00000002", Resultado{CEP: "00000002"})
	c.store("00000003", Resultado{CEP: "00000003"})
	assert.Len(t, c.cache, 2)
	res, ok := c.cached("00000003")
	require.True(t, ok)
	assert.Equal(t, "00000003", res.CEP)

	c.ttl = -time.Second
	c.store("00000004", Resultado{CEP: "00000004"})
	_, ok = c.cached("00000004")
	assert.False(t, ok, "expired entries are dropped on read")
	assert.Len(t, c.cache, 1)
}

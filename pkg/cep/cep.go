package cep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
	"vistorias/pkg/validate"
)

// Resultado is an address returned by a ViaCEP-compatible service.
type Resultado struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
	IBGE        string `json:"ibge,omitempty"`
	DDD         string `json:"ddd,omitempty"`
}

func (r Resultado) Endereco() model.Endereco {
	return model.Endereco{
		CEP:         r.CEP,
		Logradouro:  r.Logradouro,
		Complemento: r.Complemento,
		Bairro:      r.Bairro,
		Cidade:      r.Cidade,
		Estado:      r.Estado,
	}
}

type cacheEntry struct {
	res     Resultado
	expires time.Time
}

// maxCache bounds the number of cached addresses.
const maxCache = 2048

// Client looks CEPs up with a small in-memory cache. Only found addresses
// are cached.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	max     int

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		ttl:     30 * time.Minute,
		max:     maxCache,
		cache:   map[string]cacheEntry{},
	}
}

func (c *Client) cached(cep string) (Resultado, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[cep]
	if !ok {
		return Resultado{}, false
	}
	if time.Now().After(e.expires) {
		delete(c.cache, cep)
		return Resultado{}, false
	}
	return e.res, true
}

// store drops expired entries when the cache is full, then arbitrary ones
// until there is room.
func (c *Client) store(cep string, res Resultado) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= c.max {
		now := time.Now()
		for k, e := range c.cache {
			if now.After(e.expires) {
				delete(c.cache, k)
			}
		}
		for k := range c.cache {
			if len(c.cache) < c.max {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[cep] = cacheEntry{res: res, expires: time.Now().Add(c.ttl)}
}

// Lookup resolves an 8-digit CEP; punctuation is ignored.
func (c *Client) Lookup(ctx context.Context, raw string) (Resultado, error) {
	cep := validate.Digits(raw)
	if !validate.CEP(cep) {
		return Resultado{}, apperr.Invalid("CEP deve ter 8 dígitos")
	}

	if res, ok := c.cached(cep); ok {
		return res, nil
	}
	res, err := c.fetch(ctx, cep)
	if err != nil {
		return Resultado{}, err
	}
	c.store(cep, *res)
	return *res, nil
}

func (c *Client) fetch(ctx context.Context, cep string) (*Resultado, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeExternal, "consulta de CEP falhou", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeExternal, "consulta de CEP falhou", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, apperr.NotFound("CEP")
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.Newf(apperr.CodeExternal, "serviço de CEP respondeu %d", resp.StatusCode)
	}
	var body struct {
		CEP         string      `json:"cep"`
		Logradouro  string      `json:"logradouro"`
		Complemento string      `json:"complemento"`
		Bairro      string      `json:"bairro"`
		Localidade  string      `json:"localidade"`
		UF          string      `json:"uf"`
		IBGE        string      `json:"ibge"`
		DDD         string      `json:"ddd"`
		Erro        interface{} `json:"erro"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.CodeExternal, "resposta de CEP inválida", err)
	}
	// ViaCEP answers {"erro": true} (older) or {"erro": "true"} for unknown CEPs.
	if body.Erro != nil && body.Erro != false {
		return nil, apperr.NotFound("CEP")
	}
	return &Resultado{
		CEP:         validate.Digits(body.CEP),
		Logradouro:  body.Logradouro,
		Complemento: body.Complemento,
		Bairro:      body.Bairro,
		Cidade:      body.Localidade,
		Estado:      body.UF,
		IBGE:        body.IBGE,
		DDD:         body.DDD,
	}, nil
}

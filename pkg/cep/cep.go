// Package cep resolves Brazilian postal codes through ViaCEP, falling back to
// BrasilAPI.
package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/estacaoterapia/estacao_backend/config"
)

var (
	ErrInvalidCEP = errors.New("cep must have 8 digits")
	ErrNotFound   = errors.New("cep not found")
	errUpstream   = errors.New("cep provider error")
)

// Address is the ViaCEP-shaped result returned by both providers.
type Address struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
}

type Client struct {
	primaryURL  string
	fallbackURL string
	timeout     time.Duration
	httpClient  *http.Client
}

func New(cfg config.CEPConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		primaryURL:  strings.TrimRight(cfg.PrimaryURL, "/"),
		fallbackURL: strings.TrimRight(cfg.FallbackURL, "/"),
		timeout:     timeout,
		httpClient:  &http.Client{},
	}
}

// Normalize strips everything but digits and checks the length.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() != 8 {
		return "", ErrInvalidCEP
	}
	return b.String(), nil
}

// Lookup asks the primary provider and, on any failure, the fallback one.
// ErrNotFound is returned only when both agree there is no such code.
func (c *Client) Lookup(ctx context.Context, raw string) (*Address, error) {
	code, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	addr, primaryErr := c.viaCEP(ctx, code)
	if primaryErr == nil {
		return addr, nil
	}

	addr, fallbackErr := c.brasilAPI(ctx, code)
	if fallbackErr == nil {
		return addr, nil
	}

	if errors.Is(primaryErr, ErrNotFound) && errors.Is(fallbackErr, ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, errors.Join(primaryErr, fallbackErr)
}

func (c *Client) viaCEP(ctx context.Context, code string) (*Address, error) {
	var out struct {
		Address
		Erro any `json:"erro"`
	}
	status, err := c.get(ctx, fmt.Sprintf("%s/%s/json/", c.primaryURL, code), &out)
	if err != nil {
		return nil, fmt.Errorf("viacep: %w", err)
	}
	if status == http.StatusBadRequest || status == http.StatusNotFound || truthy(out.Erro) {
		return nil, fmt.Errorf("viacep: %w", ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("viacep: %w (status %d)", errUpstream, status)
	}

	a := out.Address
	a.CEP = code
	return &a, nil
}

func (c *Client) brasilAPI(ctx context.Context, code string) (*Address, error) {
	var out struct {
		CEP          string `json:"cep"`
		State        string `json:"state"`
		City         string `json:"city"`
		Neighborhood string `json:"neighborhood"`
		Street       string `json:"street"`
	}
	status, err := c.get(ctx, fmt.Sprintf("%s/%s", c.fallbackURL, code), &out)
	if err != nil {
		return nil, fmt.Errorf("brasilapi: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("brasilapi: %w", ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("brasilapi: %w (status %d)", errUpstream, status)
	}

	return &Address{
		CEP:        code,
		Logradouro: out.Street,
		Bairro:     out.Neighborhood,
		Localidade: out.City,
		UF:         out.State,
	}, nil
}

// get decodes a JSON body into out for 2xx responses and returns the status.
func (c *Client) get(ctx context.Context, url string, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.StatusCode, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return res.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return res.StatusCode, nil
}

// ViaCEP answers {"erro": true} (older deployments: "true") for unknown codes.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

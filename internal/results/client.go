package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable indica falha de rede/HTTP no feed de resultados. Nunca vira
// erro de aposta para usuário: o scheduler apenas tenta de novo no próximo ciclo.
var ErrUnavailable = errors.New("results feed unavailable")

const (
	requestTimeout = 15 * time.Second
	fetchRetries   = 1
	retryDelay     = 2 * time.Second
)

// Client consome a API de resultados estilo Ergast (somente leitura).
type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		base: baseURL,
		hc:   &http.Client{Timeout: requestTimeout},
		log:  log,
	}
}

// Latest busca o resultado da corrida mais recente da temporada.
// Retorna (nil, nil) quando a temporada ainda não tem resultado publicado.
func (c *Client) Latest(ctx context.Context, season int) (*RaceResult, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/%d/last/results.json", c.base, season))
}

// Round busca o resultado de uma rodada específica.
func (c *Client) Round(ctx context.Context, season, round int) (*RaceResult, error) {
	return c.fetch(ctx, fmt.Sprintf("%s/%d/%d/results.json", c.base, season, round))
}

func (c *Client) fetch(ctx context.Context, url string) (*RaceResult, error) {
	var lastErr error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		race, err := c.fetchOnce(ctx, url)
		if err == nil {
			return race, nil
		}
		lastErr = err
		c.log.Warn("results fetch failed", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*RaceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, errors.New("results http " + resp.Status)
	}

	var payload ergastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	// Sem corrida publicada ainda: não é erro, só não há o que liquidar.
	if len(payload.MRData.RaceTable.Races) == 0 {
		return nil, nil
	}
	race := payload.MRData.RaceTable.Races[0].toDomain()
	if len(race.Results) == 0 {
		return nil, nil
	}
	return race, nil
}

package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/repository/source"
)

// maxErrorBody - сколько байт тела ошибки попадает в лог
const maxErrorBody = 512

type client struct {
	httpClient      *http.Client
	baseURL         string
	permitsPath     string
	typesPath       string
	boundariesPath  string
	postalCodeField string
	logger          *zap.Logger
}

// NewClient создает источник датасетов, забирающий три статических файла по HTTP
func NewClient(cfg *config.DataConfig, logger *zap.Logger) repository.DatasetRepository {
	return &client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		permitsPath:     path.Base(cfg.PermitsPath),
		typesPath:       path.Base(cfg.TypesPath),
		boundariesPath:  path.Base(cfg.BoundariesPath),
		postalCodeField: cfg.PostalCodeField,
		logger:          logger,
	}
}

func (c *client) LoadPermits(ctx context.Context) ([]domain.PermitRecord, error) {
	url := c.url(c.permitsPath)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return source.Permits(data, url, c.logger)
}

func (c *client) LoadPermitTypes(ctx context.Context) ([]domain.TypeTotal, error) {
	url := c.url(c.typesPath)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return source.TypeTotals(data, url, c.logger)
}

func (c *client) LoadBoundaries(ctx context.Context) ([]domain.ZipBoundary, error) {
	url := c.url(c.boundariesPath)
	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return source.Boundaries(data, url, c.postalCodeField, c.logger)
}

func (c *client) url(name string) string {
	return c.baseURL + "/" + name
}

func (c *client) fetch(ctx context.Context, url string) ([]byte, error) {
	c.logger.Debug("Fetching dataset", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Error("Failed to create request", zap.Error(err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to execute request", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("Dataset server returned error",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("dataset fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read response", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Dataset fetched",
		zap.String("url", url),
		zap.Int("bytes", len(data)))

	return data, nil
}

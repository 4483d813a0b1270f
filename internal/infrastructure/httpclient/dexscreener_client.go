package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const dexScreenerProvider = "dexscreener"

// DEXScreenerClient defines the interface for interacting with the DEX Screener API.
type DEXScreenerClient interface {
	GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]PairData, error)
}

// dexScreenerClientImpl is the implementation of DEXScreenerClient.
type dexScreenerClientImpl struct {
	client              *fasthttp.Client
	baseURL             string
	timeout             time.Duration
	logger              *zap.Logger
	maxTokensPerRequest int
}

// NewDEXScreenerClient creates a new instance of dexScreenerClientImpl.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger, maxTokensPerRequest int) DEXScreenerClient {
	if maxTokensPerRequest <= 0 {
		maxTokensPerRequest = 30
	}
	return &dexScreenerClientImpl{
		client:              &fasthttp.Client{Name: "portfolio_aggregator"},
		baseURL:             strings.TrimRight(baseURL, "/"),
		timeout:             timeout,
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: maxTokensPerRequest,
	}
}

// GetTokenPairsByAddresses returns every pair DEX Screener knows for the given tokens.
// Address lists longer than the API limit are split into several requests.
func (c *dexScreenerClientImpl) GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}

	var all []PairData
	for _, batch := range utils.BatchStrings(tokenAddresses, c.maxTokensPerRequest) {
		pairs, err := c.fetchBatch(ctx, dexscreenerChainID, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, pairs...)
	}
	return all, nil
}

func (c *dexScreenerClientImpl) fetchBatch(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]PairData, error) {
	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, dexscreenerChainID, strings.Join(tokenAddresses, ","))
	c.logger.Debug("Requesting token pairs from DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := do(ctx, c.client, req, resp, c.timeout); err != nil {
		c.logger.Warn("Failed to execute request to DEX Screener", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("dexscreener: request %s: %w", requestURL, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		pe := statusError(dexScreenerProvider, resp, time.Now())
		c.logger.Warn("DEX Screener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("kind", string(pe.Kind)))
		return nil, pe
	}

	rawBody := resp.Body()

	var directPairs []PairData
	if err := json.Unmarshal(rawBody, &directPairs); err == nil {
		c.logger.Debug("Unmarshalled DEX Screener response (direct array)",
			zap.String("dexscreenerChainID", dexscreenerChainID),
			zap.Int("pairCount", len(directPairs)))
		return directPairs, nil
	}

	var wrapped DEXTokenPairs
	if err := json.Unmarshal(rawBody, &wrapped); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err))
		return nil, &entity.ProviderError{Provider: dexScreenerProvider, Kind: entity.KindMalformed, StatusCode: resp.StatusCode(), Err: err}
	}
	c.logger.Debug("Unmarshalled DEX Screener response (wrapped object)",
		zap.String("dexscreenerChainID", dexscreenerChainID),
		zap.Int("pairCount", len(wrapped.Pairs)))
	return wrapped.Pairs, nil
}

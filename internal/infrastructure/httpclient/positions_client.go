package httpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	positionsProvider = "positions"
	maxPageSize       = 100
	defaultMaxPages   = 50

	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// PositionsClientConfig configures the discovery provider client.
type PositionsClientConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	PageSize int
	MaxPages int
	Currency string
}

// PositionsClient fetches wallet positions from the discovery provider's JSON:API endpoint.
// Every page request goes through the request budget and the retry policy on its own,
// so a retried page resumes from its cursor.
type PositionsClient struct {
	client    *fasthttp.Client
	cfg       PositionsClientConfig
	authToken string
	networks  port.NetworkDefinitionProvider
	budget    port.RequestBudget
	retrier   port.Retrier
	metrics   port.MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewPositionsClient creates a new PositionsClient. Page sizes above the provider cap are clamped.
func NewPositionsClient(
	cfg PositionsClientConfig,
	networks port.NetworkDefinitionProvider,
	budget port.RequestBudget,
	retrier port.Retrier,
	metrics port.MetricsRecorder,
	logger *zap.Logger,
) *PositionsClient {
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &PositionsClient{
		client:    &fasthttp.Client{Name: "portfolio_aggregator"},
		cfg:       cfg,
		authToken: base64.StdEncoding.EncodeToString([]byte(cfg.APIKey + ":")),
		networks:  networks,
		budget:    budget,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger.Named("PositionsClient"),
		now:       time.Now,
	}
}

var _ port.PositionProvider = (*PositionsClient)(nil)

// FetchPositions follows the cursor until the provider has no further page, the cursor repeats,
// or MaxPages is reached.
func (c *PositionsClient) FetchPositions(
	ctx context.Context,
	wallet string,
	networks []string,
	filter entity.PositionFilter,
) ([]entity.RawPosition, error) {
	chainIDs, networkByChain, err := c.resolveChains(networks)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		filter = entity.FilterNoFilter
	}

	var (
		out    []entity.RawPosition
		cursor string
		seen   = make(map[string]struct{})
	)
	for page := 1; ; page++ {
		var resp *positionsResponse
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.budget.Acquire(); err != nil {
				return err
			}
			r, err := c.fetchPage(ctx, wallet, chainIDs, filter, cursor)
			c.metrics.ProviderRequest(positionsProvider, outcomeOf(err))
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			c.logger.Warn("Positions page failed",
				zap.String("wallet", wallet), zap.Int("page", page), zap.Error(err))
			return nil, err
		}

		for _, d := range resp.Data {
			out = append(out, c.toRawPosition(d, networkByChain))
		}

		next := nextCursor(resp.Links.Next)
		if next == "" {
			break
		}
		if _, dup := seen[next]; dup {
			c.logger.Warn("Provider repeated a page cursor, stopping pagination",
				zap.String("wallet", wallet), zap.String("cursor", next))
			break
		}
		if page >= c.cfg.MaxPages {
			c.logger.Warn("Page cap reached, positions truncated",
				zap.String("wallet", wallet), zap.Int("max_pages", c.cfg.MaxPages))
			break
		}
		seen[next] = struct{}{}
		cursor = next
	}

	c.logger.Debug("Fetched positions",
		zap.String("wallet", wallet), zap.Strings("chains", chainIDs), zap.Int("count", len(out)))
	return out, nil
}

func (c *PositionsClient) resolveChains(networks []string) ([]string, map[string]string, error) {
	chainIDs := make([]string, 0, len(networks))
	byChain := make(map[string]string, len(networks))
	for _, n := range networks {
		def, ok := c.networks.GetNetworkDefinitionByName(n)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", entity.ErrUnknownNetwork, n)
		}
		chain := def.PrimaryChainID
		if chain == "" {
			chain = def.Identifier
		}
		chainIDs = append(chainIDs, chain)
		byChain[strings.ToLower(chain)] = def.Identifier
	}
	return chainIDs, byChain, nil
}

func (c *PositionsClient) fetchPage(
	ctx context.Context,
	wallet string,
	chainIDs []string,
	filter entity.PositionFilter,
	cursor string,
) (*positionsResponse, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(fmt.Sprintf("%s/wallets/%s/positions/", c.cfg.BaseURL, wallet))
	args := req.URI().QueryArgs()
	args.Set("currency", c.cfg.Currency)
	args.Set("filter[positions]", string(filter))
	if len(chainIDs) > 0 {
		args.Set("filter[chain_ids]", strings.Join(chainIDs, ","))
	}
	args.Set("page[size]", strconv.Itoa(c.cfg.PageSize))
	if cursor != "" {
		args.Set("page[after]", cursor)
	}
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.Header.Set(fasthttp.HeaderAuthorization, "Basic "+c.authToken)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := do(ctx, c.client, req, resp, c.cfg.Timeout); err != nil {
		return nil, fmt.Errorf("positions: request page: %w", err)
	}
	c.observeQuota(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, statusError(positionsProvider, resp, c.now())
	}

	var page positionsResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, &entity.ProviderError{Provider: positionsProvider, Kind: entity.KindMalformed, StatusCode: resp.StatusCode(), Err: err}
	}
	return &page, nil
}

// observeQuota forwards the provider's remaining-quota headers to the request budget.
func (c *PositionsClient) observeQuota(resp *fasthttp.Response) {
	raw := resp.Header.Peek(headerRateLimitRemaining)
	if len(raw) == 0 {
		return
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return
	}
	c.budget.Observe(remaining, resetTime(string(resp.Header.Peek(headerRateLimitReset)), c.now()))
}

// resetTime reads X-RateLimit-Reset as a unix timestamp or as seconds from now.
// A missing or unreadable value assumes a one-minute window.
func resetTime(value string, now time.Time) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || secs <= 0 {
		return now.Add(time.Minute)
	}
	if secs > 1_000_000_000 {
		return time.Unix(secs, 0)
	}
	return now.Add(time.Duration(secs) * time.Second)
}

func nextCursor(next string) string {
	if next == "" {
		return ""
	}
	uri := fasthttp.AcquireURI()
	defer fasthttp.ReleaseURI(uri)
	if err := uri.Parse(nil, []byte(next)); err != nil {
		return ""
	}
	return string(uri.QueryArgs().Peek("page[after]"))
}

// toRawPosition validates one provider record into the closed domain vocabulary.
func (c *PositionsClient) toRawPosition(d positionData, networkByChain map[string]string) entity.RawPosition {
	a := d.Attributes
	chain := strings.ToLower(d.Relationships.Chain.Data.ID)
	network, ok := networkByChain[chain]
	if !ok {
		network = chain
	}
	ptype := entity.ParsePositionType(a.PositionType)

	p := entity.RawPosition{
		ID:              d.ID,
		ProtocolID:      strings.ToLower(a.Protocol),
		Name:            a.Name,
		Network:         network,
		PositionType:    ptype,
		RawPositionType: a.PositionType,
		CorrelationKey:  a.GroupID,
		Module:          entity.ParseProtocolModule(a.ProtocolModule),
		Market:          a.Market,
		PoolAddress:     strings.ToLower(a.PoolAddress),
		HealthFactor:    a.HealthFactor,
		NetAPY:          a.NetAPY,
	}
	if p.ProtocolID == "" && ptype == entity.PositionTypeWallet {
		p.ProtocolID = "wallet"
	}
	if a.ApplicationMetadata != nil {
		p.ProtocolName = a.ApplicationMetadata.Name
	}
	if a.Value != nil {
		p.ValueUSD = *a.Value
	}

	var address string
	decimals := a.Quantity.Decimals
	for _, impl := range a.FungibleInfo.Implementations {
		if strings.EqualFold(impl.ChainID, chain) {
			address = impl.Address
			if decimals == 0 {
				decimals = impl.Decimals
			}
			break
		}
	}

	amount, err := utils.ParseQuantity(a.Quantity.Numeric, a.Quantity.Int, decimals)
	if err != nil {
		c.logger.Warn("Unreadable position quantity, keeping the position without tokens",
			zap.String("id", d.ID), zap.Error(err))
		return p
	}
	tok := entity.PositionToken{
		Token:    entity.NewTokenReference(network, address),
		Symbol:   a.FungibleInfo.Symbol,
		Role:     entity.RoleForPositionType(ptype),
		Amount:   amount,
		Decimals: decimals,
		ValueUSD: p.ValueUSD,
	}
	if a.Price != nil && *a.Price > 0 {
		price := *a.Price
		tok.UnitPriceUSD = &price
	}
	p.Tokens = []entity.PositionToken{tok}
	return p
}

package restapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIPortfolioResponse is the response of the batch endpoint.
type APIPortfolioResponse struct {
	Data struct {
		Portfolios []entity.WalletPortfolio `json:"portfolios"`
	} `json:"data"`
	ServiceErrors []entity.PortfolioError `json:"service_errors,omitempty"`
	StatusMessage string                  `json:"status_message"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// PortfolioHandler translates HTTP requests into PortfolioService calls.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
	networks         port.NetworkDefinitionProvider
	wallets          port.WalletProvider
	health           func(ctx context.Context) error
	logger           *zap.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler. wallets and health may be nil.
func NewPortfolioHandler(
	ps port.PortfolioService,
	networks port.NetworkDefinitionProvider,
	wallets port.WalletProvider,
	health func(ctx context.Context) error,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: ps,
		networks:         networks,
		wallets:          wallets,
		health:           health,
		logger:           logger.Named("PortfolioHandler"),
	}
}

// GetPortfolioHandler serves GET /api/v1/portfolios/:wallet?networks=a,b&refresh=true.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	ctx := c.Request.Context()
	wallet := c.Param("wallet")
	networks := splitList(c.Query("networks"))

	refresh := false
	if raw := c.Query("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIError{Error: "refresh must be a boolean", Kind: string(entity.KindBadRequest), RequestID: c.GetString("request_id")})
			return
		}
		refresh = v
	}
	if refresh {
		if err := h.portfolioService.Invalidate(ctx, wallet, networks); err != nil {
			h.writeError(c, err)
			return
		}
	}

	portfolio, err := h.portfolioService.GetPortfolio(ctx, wallet, networks)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

// GetPortfoliosHandler serves GET /api/v1/portfolios for every wallet of the configured wallet file.
func (h *PortfolioHandler) GetPortfoliosHandler(c *gin.Context) {
	if h.wallets == nil {
		c.JSON(http.StatusNotFound, APIError{Error: "no wallet list configured", RequestID: c.GetString("request_id")})
		return
	}
	wallets, err := h.wallets.GetWallets()
	if err != nil {
		h.logger.Error("Failed to load wallet list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Error: "failed to load wallet list", RequestID: c.GetString("request_id")})
		return
	}

	portfolios, serviceErrors := h.portfolioService.FetchWalletsPortfolio(c.Request.Context(), wallets, splitList(c.Query("networks")))

	var response APIPortfolioResponse
	response.Data.Portfolios = portfolios
	response.ServiceErrors = serviceErrors
	switch {
	case len(serviceErrors) > 0 && len(portfolios) == 0:
		response.StatusMessage = "Failed to retrieve any portfolios due to service errors."
	case len(serviceErrors) > 0:
		response.StatusMessage = "Portfolios retrieved. Some wallets encountered errors."
	case len(portfolios) == 0:
		response.StatusMessage = "No portfolio data found. Check the wallet list."
	default:
		response.StatusMessage = "Portfolios retrieved successfully."
	}
	c.JSON(http.StatusOK, response)
}

// GetNetworksHandler serves GET /api/v1/networks.
func (h *PortfolioHandler) GetNetworksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"networks": h.networks.GetAllNetworkDefinitions()})
}

// Health serves GET /healthz.
func (h *PortfolioHandler) Health(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PortfolioHandler) writeError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	if hint, ok := entity.RetryAfterHint(err); ok && status == http.StatusTooManyRequests {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(hint.Seconds()))))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Portfolio request failed",
			zap.Int("status", status), zap.String("request_id", c.GetString("request_id")), zap.Error(err))
	}
	c.JSON(status, APIError{Error: err.Error(), Kind: kind, RequestID: c.GetString("request_id")})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	var pe *entity.ProviderError
	switch {
	case errors.Is(err, entity.ErrInvalidWallet),
		errors.Is(err, entity.ErrUnknownNetwork),
		errors.Is(err, entity.ErrInvalidFilter):
		return http.StatusBadRequest, string(entity.KindBadRequest)
	case errors.Is(err, entity.ErrBudgetExceeded), errors.Is(err, entity.ErrRateLimited):
		return http.StatusTooManyRequests, string(entity.KindRateLimited)
	case errors.Is(err, entity.ErrAuthentication):
		return http.StatusBadGateway, string(entity.KindAuth)
	case errors.Is(err, entity.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, string(entity.KindUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &pe):
		return http.StatusBadGateway, string(pe.Kind)
	default:
		return http.StatusInternalServerError, ""
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChainReader is the node access needed to judge RPC health. *ethclient.Client satisfies it.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type HealthService struct {
	chain         ChainReader
	redisClient   *redis.Client
	walletEnabled bool
	version       string
	startTime     time.Time
	log           *zap.SugaredLogger
}

// NewHealthService builds the checker. redisClient may be nil when Redis is not configured.
func NewHealthService(chain ChainReader, redisClient *redis.Client, walletEnabled bool, version string) *HealthService {
	return &HealthService{
		chain:         chain,
		redisClient:   redisClient,
		walletEnabled: walletEnabled,
		version:       version,
		startTime:     time.Now(),
		log:           logger.GetLogger(),
	}
}

func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := make(map[string]types.HealthComponent)
	overallStatus := types.HealthStatusUp

	merge := func(name string, c types.HealthComponent) {
		components[name] = c
		switch c.Status {
		case types.HealthStatusDown:
			overallStatus = types.HealthStatusDown
		case types.HealthStatusDegraded:
			if overallStatus != types.HealthStatusDown {
				overallStatus = types.HealthStatusDegraded
			}
		}
	}

	merge("ethereum", h.checkChain(ctx))
	if h.redisClient != nil {
		merge("redis", h.checkRedis(ctx))
	}
	merge("wallet", h.checkWallet())

	return types.HealthCheck{
		Status:     overallStatus,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

func (h *HealthService) checkChain(ctx context.Context) types.HealthComponent {
	block, err := h.chain.BlockNumber(ctx)
	if err != nil {
		h.log.Errorw("Ethereum RPC health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Ethereum RPC unreachable",
		}
	}

	return types.HealthComponent{
		Status:  types.HealthStatusUp,
		Details: fmt.Sprintf("block %d", block),
	}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Errorw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Redis connection failed",
		}
	}

	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}

// Without a wallet the service still answers lookups but every submission fails.
func (h *HealthService) checkWallet() types.HealthComponent {
	if !h.walletEnabled {
		return types.HealthComponent{
			Status:  types.HealthStatusDegraded,
			Details: "No wallet provider configured",
		}
	}
	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}

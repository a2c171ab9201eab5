package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/learnsphere/learnsphere-backend/internal/clients/ccms"
	"github.com/learnsphere/learnsphere-backend/internal/clients/chat"
	"github.com/learnsphere/learnsphere-backend/internal/clients/mml"
	"github.com/learnsphere/learnsphere-backend/internal/clients/provider"
	"github.com/learnsphere/learnsphere-backend/internal/platform/blob"
	"github.com/learnsphere/learnsphere-backend/internal/platform/envutil"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/platform/sendgrid"
)

type Clients struct {
	CCMS    ccms.Client
	Chat    chat.Client
	Labs    mml.Client
	Gateway *provider.Gateway
	Mail    sendgrid.Client
	Bucket  blob.BucketService
	Redis   *redis.Client
}

func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     envutil.String("REDIS_ADDR", "localhost:6379"),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})

	ccmsCfg, err := ccms.ConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("ccms config: %w", err)
	}
	chatCfg, err := chat.ConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("chat config: %w", err)
	}
	mmlCfg, err := mml.ConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("mml config: %w", err)
	}
	yakshaCfg, err := provider.YakshaConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("yaksha config: %w", err)
	}
	wecpCfg, err := provider.WECPConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("wecp config: %w", err)
	}

	mail, err := sendgrid.New(log, sendgrid.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("sendgrid client: %w", err)
	}
	bucket, err := blob.NewBucketService(ctx, log)
	if err != nil {
		return Clients{}, fmt.Errorf("bucket service: %w", err)
	}

	return Clients{
		CCMS:    ccms.NewClient(log, ccmsCfg, rdb),
		Chat:    chat.NewClient(log, chatCfg),
		Labs:    mml.NewClient(log, mmlCfg),
		Gateway: provider.NewGateway(provider.NewYaksha(log, yakshaCfg), provider.NewWECP(log, wecpCfg)),
		Mail:    mail,
		Bucket:  bucket,
		Redis:   rdb,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/handler"
	"crowdfund/internal/infrastructure/cache"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/infrastructure/mq"
	"crowdfund/internal/job"
	"crowdfund/internal/repository"
	"crowdfund/internal/service"
	"crowdfund/internal/wallet"
	"crowdfund/pkg/idgen"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and settlement recovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "auto migrate the MySQL schema before serving")
	return cmd
}

// backend is everything that differs between the memory and MySQL stores.
type backend struct {
	repo   repository.Repository
	outbox repository.OutboxStore
	wallet interface {
		service.Transferer
		service.Wallet
	}
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(cfg *config.Config, migrate bool) (*backend, error) {
	if cfg.Store.Driver == config.StoreMemory {
		repo := repository.NewMemoryRepository(cfg.Kafka.Topic)
		log.Info("[Server] using in-memory store")
		return &backend{repo: repo, outbox: repo, wallet: wallet.NewMemoryWallet()}, nil
	}

	db, err := database.OpenMySQL(&cfg.MySQL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			database.Close(db)
			return nil, err
		}
	}
	return &backend{
		repo:    repository.NewCampaignRepository(db, cfg.Kafka.Topic),
		outbox:  repository.NewOutboxRepository(db),
		wallet:  wallet.NewAccountWallet(db),
		closers: []func(){func() { database.Close(db) }},
	}, nil
}

func serve(cfg *config.Config, migrate bool) error {
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(cfg, migrate)
	if err != nil {
		return err
	}
	defer b.close()

	opts := []service.Option{service.WithTransferTimeout(cfg.Business.TransferTimeout)}
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		opts = append(opts, service.WithLocker(lock.NewCampaignLocker(rdb,
			cfg.Business.LockTTL, cfg.Business.LockRetryInterval, cfg.Business.LockMaxRetries)))
	}

	var producer job.Producer = mq.LogProducer{}
	if cfg.Kafka.Enabled {
		kp, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() { _ = kp.Close() })
		producer = kp
	}

	campaignService := service.NewCampaignService(b.repo, b.wallet, opts...)
	accountService := service.NewAccountService(b.wallet)

	var jobs sync.WaitGroup
	sender := job.NewOutboxSender(b.outbox, producer,
		cfg.Business.OutboxInterval, cfg.Business.OutboxBatchSize, cfg.Business.MaxRetryCount)
	requeue := job.NewOutboxRequeue(b.outbox,
		cfg.Business.OutboxRequeueAfter, cfg.Business.OutboxRequeueAfter, cfg.Business.OutboxBatchSize)
	recovery := job.NewSettlementRecovery(campaignService,
		cfg.Business.SettlementInterval, cfg.Business.SettlementStaleAfter, cfg.Business.OutboxBatchSize)
	jobs.Add(3)
	go func() { defer jobs.Done(); sender.Start(ctx) }()
	go func() { defer jobs.Done(); requeue.Start(ctx) }()
	go func() { defer jobs.Done(); recovery.Start(ctx) }()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRouter(handler.NewHandler(campaignService, accountService)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("[Server] listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("[Server] shutting down")
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("[Server] shutdown")
	}

	// http first, then the relay: in-flight requests may still emit events
	cancel()
	jobs.Wait()

	log.Info("[Server] stopped")
	return nil
}

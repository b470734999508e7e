// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"medigraph/internal/auth"
	connhandler "medigraph/internal/connection/handler"
	connmetrics "medigraph/internal/connection/metrics"
	connservice "medigraph/internal/connection/service"
	invitehandler "medigraph/internal/invite/handler"
	invitemetrics "medigraph/internal/invite/metrics"
	inviteservice "medigraph/internal/invite/service"
	"medigraph/internal/notification"
	"medigraph/internal/notification/kafkapub"
	"medigraph/internal/notification/mailer"
	notifmetrics "medigraph/internal/notification/metrics"
	"medigraph/internal/platform/config"
	"medigraph/internal/platform/httpserver"
	"medigraph/internal/platform/logger"
	platformmetrics "medigraph/internal/platform/metrics"
	platformredis "medigraph/internal/platform/redis"
	profilecache "medigraph/internal/profile/cache"
	profilehandler "medigraph/internal/profile/handler"
	profileservice "medigraph/internal/profile/service"
	rechandler "medigraph/internal/recommendation/handler"
	recmetrics "medigraph/internal/recommendation/metrics"
	recservice "medigraph/internal/recommendation/service"
	"medigraph/internal/store/memorydb"
	"medigraph/internal/store/postgres"
	httptransport "medigraph/internal/transport/http"
	verifhandler "medigraph/internal/verification/handler"
	verifmetrics "medigraph/internal/verification/metrics"
	verifservice "medigraph/internal/verification/service"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	profiles profileservice.Store
	invites  inviteservice.Store
	inviteTx inviteservice.Tx
	conns    connservice.Store
	connTx   connservice.Tx
	recs     recservice.Store
	recTx    recservice.Tx
	verifs   verifservice.Store
	verifTx  verifservice.Tx
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("card cache enabled")
	}

	var (
		cardCache   profileservice.CardCache
		inviteCache inviteservice.CounterCache
		connCache   connservice.CounterCache
		recCache    recservice.CounterCache
	)
	if redisClient != nil {
		cards := profilecache.New(redisClient.Client, cfg.CardTTL)
		cardCache = cards
		inviteCache = cards
		connCache = cards
		recCache = cards
	}

	var senders []notification.Sender
	if cfg.SMTPHost != "" {
		senders = append(senders, mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom))
		log.Info("mail notifications enabled", "host", cfg.SMTPHost)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafkapub.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer publisher.Close()
		senders = append(senders, publisher)
		log.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	}
	dispatcher := notification.NewDispatcher(cfg.NotifierBuffer, log, notifmetrics.New(), senders...)

	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)

	profiles := profileservice.New(st.profiles, tokens, cardCache, log, cfg.AdminHandles)
	invites := inviteservice.New(st.invites, st.inviteTx, dispatcher, inviteCache, invitemetrics.New(), log, cfg.InviteTTL, cfg.PublicBaseURL)
	connections := connservice.New(st.conns, st.connTx, dispatcher, connCache, connmetrics.New(), log)
	recommendations := recservice.New(st.recs, st.recTx, recCache, recmetrics.New(), log)
	verifications := verifservice.New(st.verifs, st.verifTx, dispatcher, verifmetrics.New(), log)

	router := httptransport.NewRouter(log, platformmetrics.NewHTTP(),
		profilehandler.New(profiles, tokens, log),
		invitehandler.New(invites, tokens, log),
		connhandler.New(connections, tokens, log),
		rechandler.New(recommendations, tokens, cfg.FingerprintSalt, log),
		verifhandler.New(verifications, tokens, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		log.Info("starting medigraph", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStores selects the backing store: an empty DATABASE_URL means the
// in-memory graph, anything else is a postgres DSN.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		g := memorydb.New()
		return stores{
			profiles: g.Profiles(),
			invites:  g.Invites(),
			inviteTx: g.InviteTx(),
			conns:    g.Connections(),
			connTx:   g.ConnectionTx(),
			recs:     g.Recommendations(),
			recTx:    g.RecommendationTx(),
			verifs:   g.Verifications(),
			verifTx:  g.VerificationTx(),
		}, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return stores{}, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("using postgres store")
	return stores{
		profiles: postgres.NewProfiles(db),
		invites:  postgres.NewInvites(db),
		inviteTx: postgres.NewInviteTx(db, cfg.TxTimeout),
		conns:    postgres.NewConnections(db),
		connTx:   postgres.NewConnectionTx(db, cfg.TxTimeout),
		recs:     postgres.NewRecommendations(db),
		recTx:    postgres.NewRecommendationTx(db, cfg.TxTimeout),
		verifs:   postgres.NewVerifications(db),
		verifTx:  postgres.NewVerificationTx(db, cfg.TxTimeout),
	}, func() { db.Close() }, nil
}

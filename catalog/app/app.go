package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/bookshelf-service/catalog/config"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/errs"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/events"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/handler"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/normalize"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/repository"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/server"
	"github.com/Astemirdum/bookshelf-service/catalog/internal/service"
	"github.com/Astemirdum/bookshelf-service/catalog/migrations"
	"github.com/Astemirdum/bookshelf-service/pkg/database"
	"github.com/Astemirdum/bookshelf-service/pkg/kafka"
	"github.com/Astemirdum/bookshelf-service/pkg/logger"
)

type deps struct {
	db        *sqlx.DB
	publisher events.Publisher
	svc       *service.Service
}

func (d *deps) close(log *zap.Logger) {
	if err := d.publisher.Close(); err != nil {
		log.Warn("publisher close", zap.Error(err))
	}
	d.db.Close()
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*deps, error) {
	db, err := database.NewDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return nil, errors.Wrap(err, "db init")
	}
	repo, err := repository.NewRepository(db, cfg.Database.Driver, log)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "repo")
	}

	vocab := normalize.DefaultVocabulary()
	if cfg.Import.Headers != "" {
		if vocab, err = normalize.LoadVocabulary(cfg.Import.Headers); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "header vocabulary")
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, "kafka.NewProducer")
		}
		publisher = events.NewKafkaPublisher(producer, cfg.Kafka.TopicOrDefault(), log)
	}

	return &deps{
		db:        db,
		publisher: publisher,
		svc:       service.NewService(repo, normalize.New(vocab), publisher, log),
	}, nil
}

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "bookshelf")
	d, err := build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("app init", zap.Error(err))
	}

	res, err := d.svc.Bootstrap(context.Background(), cfg.Import.BootstrapCSV)
	switch {
	case errors.Is(err, errs.ErrSourceNotFound):
		log.Warn("bootstrap source unavailable, starting with the current catalog",
			zap.String("source", cfg.Import.BootstrapCSV), zap.Error(err))
	case err != nil:
		log.Error("bootstrap", zap.Error(err))
	default:
		log.Info("bootstrap", zap.Int("imported", res.Imported), zap.Int("dropped", res.Dropped))
	}

	h := handler.New(d.svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	d.close(log)
	log.Info("Graceful shutdown finished")
}

// Import replaces the catalog with the rows of source and exits.
func Import(ctx context.Context, cfg *config.Config, source string) (int, int, error) {
	log := logger.NewLogger(cfg.Log, "bookshelf")
	d, err := build(ctx, cfg, log)
	if err != nil {
		return 0, 0, err
	}
	defer d.close(log)

	res, err := d.svc.Import(ctx, source)
	if err != nil {
		return 0, 0, err
	}
	return res.Imported, res.Dropped, nil
}

// Migrate applies pending schema migrations without starting the server.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return err
	}
	return db.Close()
}

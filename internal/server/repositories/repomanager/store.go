package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoDatabase = "userkeeper"

// Store is an opened user store together with the function that releases it.
type Store struct {
	Users users.Repository
	Close func(ctx context.Context) error
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open picks the backend from the DSN scheme: postgres(ql)://, mongodb(+srv)://
// or memory://. mongoDatabase names the database for the mongo backend.
func Open(ctx context.Context, dsn, mongoDatabase string, logger logging.Logger) (*Store, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return openPostgres(ctx, dsn, logger)
	case "mongodb", "mongodb+srv":
		return openMongo(ctx, dsn, mongoDatabase, logger)
	case "memory":
		logger.Warn(ctx, "using in-memory user store, data is lost on restart")
		return &Store{
			Users: users.NewMemoryRepository(),
			Close: func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

func openPostgres(ctx context.Context, dsn string, logger logging.Logger) (*Store, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db error: %w", err)
	}

	m := NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	logger.Info(ctx, "postgres user store ready")

	return &Store{
		Users: m.Users(db),
		Close: func(context.Context) error { return db.Close() },
	}, nil
}

func openMongo(ctx context.Context, dsn, database string, logger logging.Logger) (*Store, error) {
	if database == "" {
		database = defaultMongoDatabase
	}

	client, err := mongo.Connect(options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("db error: %w", err)
	}

	repo := users.NewMongoRepository(client.Database(database))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Info(ctx, "mongo user store ready", "database", database)

	return &Store{
		Users: repo,
		Close: client.Disconnect,
	}, nil
}

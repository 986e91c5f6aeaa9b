package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"bookmybox-cli/api"
	"bookmybox-cli/bookings"
	"bookmybox-cli/listings"
	"bookmybox-cli/session"
	"bookmybox-cli/storage"
)

// App is the per-invocation object graph. The session manager is both the
// client's token source and its refresher.
type App struct {
	Client   *api.Client
	DB       *sql.DB
	Session  *session.Manager
	Listings *listings.Store
	Bookings *bookings.Store
	Logger   *slog.Logger
}

func newApp(conf Config, logger *slog.Logger) (*App, error) {
	statePath := conf.StateDB
	if statePath == "" {
		path, err := storage.StatePath()
		if err != nil {
			return nil, err
		}
		statePath = path
	}
	db, err := storage.OpenStateDB(statePath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	client := api.NewClient(conf.APIURL)
	client.Logger = logger

	manager := session.NewManager(client, storage.NewKV(db), logger)
	if err := manager.Restore(); err != nil {
		logger.Warn("restore session", "error", err)
	}
	client.Tokens = manager
	client.Refresher = manager

	return &App{
		Client:   client,
		DB:       db,
		Session:  manager,
		Listings: listings.NewStore(client, logger),
		Bookings: bookings.NewStore(client, logger),
		Logger:   logger,
	}, nil
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// requireUser confirms the persisted session against the backend.
func (a *App) requireUser(ctx context.Context) (*api.User, error) {
	if a.Session.AccessToken() == "" {
		return nil, fmt.Errorf("not logged in. Run 'bookmybox auth login' first")
	}
	user := a.Session.FetchCurrentUser(ctx)
	if user == nil {
		if state := a.Session.Snapshot(); state.LastError != "" {
			return nil, fmt.Errorf("%s. Run 'bookmybox auth login' to re-authenticate", state.LastError)
		}
		return nil, fmt.Errorf("could not confirm your session. Run 'bookmybox auth login' to re-authenticate")
	}
	return user, nil
}

func (a *App) requireRole(ctx context.Context, roles ...string) (*api.User, error) {
	user, err := a.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if user.Role == role {
			return user, nil
		}
	}
	return nil, fmt.Errorf("this command needs a %s account (signed in as %s)", roles[0], user.Role)
}

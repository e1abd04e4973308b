package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bookshelf/internal/auth"
	"bookshelf/internal/book"
	"bookshelf/internal/config"
	"bookshelf/internal/docstore"
	"bookshelf/internal/kv"
	"bookshelf/internal/library"
	"bookshelf/internal/localstore"
	"bookshelf/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// remoteBackend holds the account and document services shared by commands.
type remoteBackend struct {
	docs  docstore.Store
	users *user.Service
	auth  *auth.Service
	close func()
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
	errOut io.Writer

	remote *remoteBackend
}

// openRemote connects the account and document stores on first use.
func (a *app) openRemote(ctx context.Context) (*remoteBackend, error) {
	if a.remote != nil {
		return a.remote, nil
	}
	if a.cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required for account commands")
	}

	var (
		docs        docstore.Store
		users       user.Repository
		revocations auth.RevocationRepository
		closeFn     = func() {}
	)
	switch a.cfg.DocStore {
	case config.DocStoreMemory:
		docs = docstore.NewMemoryStore()
		users = user.NewMemoryRepo()
		revocations = auth.NewMemoryRepo()
	default:
		pool, err := pgxpool.New(ctx, a.cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("cannot create db pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("cannot reach database (%s): %w", config.RedactDSN(a.cfg.DBDSN), err)
		}
		docs = docstore.NewPostgresRepo(pool, a.cfg.DBTimeout, a.logger)
		users = user.NewPostgresRepo(pool, a.cfg.DBTimeout)
		revocations = auth.NewPostgresRepo(pool, a.cfg.DBTimeout)
		closeFn = pool.Close
	}

	userService := user.NewService(users)
	a.remote = &remoteBackend{
		docs:  docs,
		users: userService,
		auth:  auth.NewService(a.cfg.JWTSecret, a.cfg.TokenTTL, userService, revocations, a.logger),
		close: closeFn,
	}
	return a.remote, nil
}

// forgetLogin revokes the saved token when the account store is reachable and
// deletes the credentials file. It reports whether a login was saved.
func (a *app) forgetLogin(ctx context.Context) (bool, error) {
	creds, loggedIn, err := loadCredentials(a.cfg.DataDir)
	if err != nil || !loggedIn {
		return false, err
	}
	if remote, err := a.openRemote(ctx); err == nil {
		if err := remote.auth.Logout(ctx, creds.Token); err != nil && !errors.Is(err, auth.ErrUnauthorized) {
			return true, err
		}
	} else {
		a.logger.Warn("token not revoked", zap.Error(err))
	}
	return true, clearCredentials(a.cfg.DataDir)
}

func (a *app) close() {
	if a.remote != nil {
		a.remote.close()
	}
}

// openSession opens the device library and, when a saved login is still
// valid, signs it in to the remote library.
func (a *app) openSession(ctx context.Context, onChange func([]book.Book)) (*library.Session, func(), error) {
	store, err := kv.Open(a.cfg.LocalStore, a.cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	creds, loggedIn, err := loadCredentials(a.cfg.DataDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	var (
		factory library.RemoteFactory
		remote  *remoteBackend
	)
	if loggedIn {
		remote, err = a.openRemote(ctx)
		if err != nil {
			a.logger.Warn("remote library unavailable", zap.Error(err))
			fmt.Fprintf(a.errOut, "remote library unavailable, using local library: %v\n", err)
		} else {
			factory = library.RemoteFromStore(remote.docs, a.logger)
		}
	}

	session := library.NewSession(localstore.New(store), factory, library.Options{
		OnChange: onChange,
		Logger:   a.logger,
	})
	cleanup := func() {
		session.Close()
		_ = store.Close()
	}
	if err := session.Open(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	if factory != nil {
		userID, err := remote.auth.Identify(ctx, creds.Token)
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			fmt.Fprintln(a.errOut, "saved login has expired; run `shelf login` again")
		case err != nil:
			a.logger.Warn("identify saved login", zap.Error(err))
			fmt.Fprintf(a.errOut, "could not check saved login: %v\n", err)
		default:
			if err := session.SignIn(ctx, userID); err != nil {
				a.logger.Warn("sign in", zap.String("user_id", userID), zap.Error(err))
				fmt.Fprintf(a.errOut, "could not load remote library, using local library: %v\n", err)
			}
		}
	}
	return session, cleanup, nil
}

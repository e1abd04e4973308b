package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"bookshelf/internal/book"
	"bookshelf/internal/config"
	"bookshelf/internal/docstore"
	"bookshelf/internal/library"
	"bookshelf/internal/platform/logging"
	"bookshelf/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type options struct {
	email    string
	username string
	password string
	extra    int
}

var classics = []book.Book{
	{Title: "Dune", Author: "Frank Herbert", Pages: "412", IsRead: true},
	{Title: "The Hobbit", Author: "J.R.R. Tolkien", Pages: "310"},
	{Title: "Emma", Author: "Jane Austen", Pages: "474"},
	{Title: "Beloved", Author: "Toni Morrison", Pages: "324", IsRead: true},
	{Title: "Neuromancer", Author: "William Gibson", Pages: "271"},
}

func main() {
	var opts options
	flag.StringVar(&opts.email, "email", "demo@example.com", "Demo user email")
	flag.StringVar(&opts.username, "username", "demo", "Demo user name")
	flag.StringVar(&opts.password, "password", "Demo123!@#", "Demo user password")
	flag.IntVar(&opts.extra, "extra", 0, "Number of generated books to add after the classics")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("connect to database", zap.String("dsn", config.RedactDSN(cfg.DBDSN)), zap.Error(err))
	}
	defer pool.Close()

	users := user.NewService(user.NewPostgresRepo(pool, cfg.DBTimeout))
	books := library.NewService(docstore.NewPostgresRepo(pool, cfg.DBTimeout, logger), logger)

	ownerID, added, err := seed(ctx, users, books, opts, rand.New(rand.NewSource(1)))
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete",
		zap.String("email", opts.email),
		zap.String("user_id", ownerID),
		zap.Int("books_added", added),
	)
}

// seed creates the demo user, or reuses it when the email is taken, and adds
// sample books it does not already own.
func seed(ctx context.Context, users *user.Service, books *library.Service, opts options, rng *rand.Rand) (string, int, error) {
	u, err := users.Register(ctx, opts.email, opts.username, opts.password)
	if errors.Is(err, user.ErrAlreadyExists) {
		u, err = users.Authenticate(ctx, opts.email, opts.password)
	}
	if err != nil {
		return "", 0, fmt.Errorf("demo user: %w", err)
	}

	samples := append([]book.Book(nil), classics...)
	for i := 0; i < opts.extra; i++ {
		samples = append(samples, book.New(
			fmt.Sprintf("%s %d", getRandomWord(rng), i+1),
			book.DefaultAuthor,
			strconv.Itoa(100+rng.Intn(800)),
			rng.Intn(2) == 0,
		))
	}

	added := 0
	for _, b := range samples {
		err := books.Add(ctx, u.ID, b)
		if errors.Is(err, library.ErrDuplicateTitle) {
			continue
		}
		if err != nil {
			return u.ID, added, fmt.Errorf("add %q: %w", b.Title, err)
		}
		added++
	}
	return u.ID, added, nil
}

func getRandomWord(rng *rand.Rand) string {
	words := []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
	return words[rng.Intn(len(words))]
}

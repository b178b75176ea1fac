package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"productstudio/internal/adapter/repo"
	"productstudio/internal/domain"
	"productstudio/internal/infra"
)

// credits grants credits to a user outside the billing webhook, for support
// refunds and promotions. Each grant is recorded as a billing event so a
// repeated -ref is applied once.
func main() {
	_ = godotenv.Load()

	var (
		userFlag   string
		amountFlag int
		refFlag    string
		showFlag   bool
	)
	flag.StringVar(&userFlag, "user", "", "user id to credit")
	flag.IntVar(&amountFlag, "amount", 0, "credits to add")
	flag.StringVar(&refFlag, "ref", "", "idempotency reference (defaults to a new id)")
	flag.BoolVar(&showFlag, "show", false, "print the balance without changing it")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	if !showFlag && amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "credits")
	runner := infra.NewSQLRunner(pool, logger)

	if showFlag {
		p, err := repo.NewProfileRepository(runner).GetByID(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to load profile: %w", err))
		}
		fmt.Printf("User %s has %d credits\n", p.ID, p.Credits)
		return
	}

	ref := strings.TrimSpace(refFlag)
	if ref == "" {
		ref = uuid.NewString()
	}
	balance, err := repo.NewBillingRepository(runner).ApplyCredits(ctx, "manual:"+ref, userID, amountFlag)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			fmt.Printf("Grant %s was already applied\n", ref)
			return
		}
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}
	fmt.Printf("User %s credited %d, balance %d (ref %s)\n", userID, amountFlag, balance, ref)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adapthttp "slimmom/internal/adapter/http"
	"slimmom/internal/app"
)

var (
	serveAddr         string
	reconcileInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diary API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withBackend(ctx, func(b *backend) error {
			return serve(ctx, b)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", env("ADDR", ":8080"), "Listen address")
	serveCmd.Flags().DurationVar(&reconcileInterval, "reconcile-interval", 5*time.Minute, "How often flagged days are reconciled (0 disables)")
}

func serve(ctx context.Context, b *backend) error {
	dayLoc, err := time.LoadLocation(env("DAY_LOCATION", "UTC"))
	if err != nil {
		return fmt.Errorf("DAY_LOCATION: %w", err)
	}

	ledgerSvc := app.NewLedgerService(b.ledger, b.catalog)
	profileSvc := app.NewProfileService(b.profiles)
	diarySvc := app.NewDiaryService(b.ledger, b.catalog, ledgerSvc).WithProfiles(profileSvc)
	trendSvc := app.NewTrendService(b.ledger)
	authSvc := app.NewAuthService(b.users, b.sessions)
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		ttl, err := time.ParseDuration(env("JWT_TTL", "1h"))
		if err != nil {
			return fmt.Errorf("JWT_TTL: %w", err)
		}
		authSvc.WithTokenSecret(secret, ttl)
	}

	if user, pass := os.Getenv("INITIAL_USER"), os.Getenv("INITIAL_PASSWORD"); user != "" && pass != "" {
		if err := authSvc.CreateInitialUser(ctx, user, pass); err != nil {
			log.Printf("initial user: %v", err)
		}
	}

	srv := adapthttp.New(ledgerSvc, diarySvc, trendSvc, authSvc, b, dayLoc).WithProfiles(profileSvc)
	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		cfg, err := adapthttp.NewOIDCConfig(ctx, issuer,
			os.Getenv("OIDC_CLIENT_ID"), os.Getenv("OIDC_CLIENT_SECRET"), os.Getenv("OIDC_REDIRECT_URL"))
		if err != nil {
			return fmt.Errorf("oidc: %w", err)
		}
		srv.WithOIDC(cfg)
	}

	go maintain(ctx, ledgerSvc, b, reconcileInterval)

	httpSrv := &http.Server{
		Addr:              serveAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (store=%s)", serveAddr, storeKind)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// maintain periodically heals flagged aggregates and drops expired sessions.
func maintain(ctx context.Context, ledger *app.LedgerService, b *backend, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		results, err := ledger.ReconcileFlagged(ctx, 0)
		if err != nil {
			log.Printf("reconcile flagged: %v", err)
		}
		for _, r := range results {
			log.Printf("reconciled %s %s: %s -> %s", r.UserID, r.Day, r.Before.TotalCalories, r.After.TotalCalories)
		}
		if err := b.sessions.DeleteExpired(ctx); err != nil {
			log.Printf("delete expired sessions: %v", err)
		}
	}
}

package cli

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
	"golang.org/x/sync/errgroup"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/pressure"
	"github.com/salthouse/workset/internal/registry"
	"github.com/salthouse/workset/internal/server"
	"github.com/salthouse/workset/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg := registry.New(db, nil)
	if err := reg.Load(); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	cache := lifecycle.New(cfg.Cache.Lifecycle())
	collector := telemetry.NewCollector()
	svc := server.NewService(cache, reg, collector, db)

	restored, err := svc.Restore()
	if err != nil {
		return fmt.Errorf("restore working set: %w", err)
	}

	// Matches the pressure_log source vocabulary.
	source := "monitor"
	if cfg.Pressure.Manual >= 0 {
		source = "manual"
	}
	monitor := pressure.NewMonitor(svc, pressure.Config{
		Interval: cfg.Pressure.Interval(),
		Manual:   cfg.Pressure.Manual,
		OnSample: func(sample pressure.Sample) {
			if sample.UsedBytes > 0 {
				collector.RecordMemoryUsage(sample.UsedBytes)
			}
			if err := db.LogPressure(time.Now().UnixMilli(), sample.Pressure, source); err != nil {
				log.Printf("serve: log pressure: %v", err)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prime the limits before taking traffic so the restored working set
	// conforms to current memory pressure from the first request.
	if err := monitor.Poll(ctx); err != nil {
		log.Printf("serve: initial pressure sample: %v", err)
	}

	srv := server.New(svc, VersionString())
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	limits := svc.Limits()
	fmt.Fprintf(os.Stderr, "workset serving on %s\n", addr)
	fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
	fmt.Fprintf(os.Stderr, "  entities: %d (%d resident)\n", reg.Count(), restored)
	fmt.Fprintf(os.Stderr, "  limits: immediate %d, active %d, background %d\n",
		limits.Immediate, limits.Active, limits.Background)
	if cfg.Pressure.Manual >= 0 {
		fmt.Fprintf(os.Stderr, "  pressure: manual %.2f\n", cfg.Pressure.Manual)
	} else {
		fmt.Fprintf(os.Stderr, "  pressure: sampling every %s\n", cfg.Pressure.Interval())
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return monitor.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	if _, serr := svc.SaveSnapshot(); serr != nil {
		fmt.Fprintf(os.Stderr, "save final snapshot: %v\n", serr)
	}
	return err
}

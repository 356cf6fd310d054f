package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdftoolkit/internal/config"
    logpkg "github.com/local/pdftoolkit/internal/logger"
    "github.com/local/pdftoolkit/internal/limiter"
    "github.com/local/pdftoolkit/internal/metrics"
    "github.com/local/pdftoolkit/internal/pdfops"
    "github.com/local/pdftoolkit/internal/server"
    "github.com/local/pdftoolkit/internal/statuscheck"
)

func main() {
    cfg := cfgpkg.FromEnv()

    // Init logging
    if err := logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        Service:      "pdftoolkit",
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    }); err != nil {
        fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
    }
    defer logpkg.Close()

    metrics.Init()

    // Diagnostics backends are optional; /test reports what is missing.
    diag := statuscheck.Options{
        DatabaseURLSet:  cfg.Diagnostics.DatabaseURL != "",
        DatabaseNameSet: cfg.Diagnostics.DatabaseName != "",
    }
    if cfg.Diagnostics.DatabaseURL != "" {
        db, err := statuscheck.NewRedisDatabase(cfg.Diagnostics.DatabaseURL)
        if err != nil {
            log.Warn().Err(err).Msg("database probe disabled")
        } else {
            defer db.Close()
            diag.Database = db
        }
    }
    if cfg.Diagnostics.S3Bucket != "" {
        bucket, err := statuscheck.NewS3Bucket(context.Background(), statuscheck.S3Options{
            Bucket:          cfg.Diagnostics.S3Bucket,
            Region:          cfg.Diagnostics.S3Region,
            Endpoint:        cfg.Diagnostics.S3Endpoint,
            AccessKeyID:     cfg.Diagnostics.S3AccessKeyID,
            SecretAccessKey: cfg.Diagnostics.S3SecretAccessKey,
        })
        if err != nil {
            log.Warn().Err(err).Msg("storage probe disabled")
        } else {
            diag.Bucket = bucket
        }
    }

    mux := http.NewServeMux()
    statuscheck.New(diag).RegisterRoutes(mux)
    server.New(server.Dependencies{
        Toolkit:        pdfops.New(pdfops.Options{
            SniffContent:   cfg.Server.SniffUploads,
            MaxImagePixels: cfg.Server.MaxImagePixels,
        }),
        MaxUploadBytes: cfg.Server.MaxUploadBytes(),
        Limiter:        limiter.New(cfg.Server.MaxConcurrentOps),
        AdmitTimeout:   cfg.Server.AdmitTimeout,
    }).RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    srv := &http.Server{
        Addr:         ":" + cfg.Server.Port,
        Handler:      server.RequestContext(server.CORS(cfg.Server.AllowedOrigins)(mux)),
        ReadTimeout:  cfg.Server.ReadTimeout,
        WriteTimeout: cfg.Server.WriteTimeout,
    }

    go func() {
        log.Info().Strs("origins", cfg.Server.AllowedOrigins).Int("max_concurrent_ops", cfg.Server.MaxConcurrentOps).Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        log.Error().Err(err).Msg("shutdown")
    }
    log.Info().Msg("shutdown complete")
}

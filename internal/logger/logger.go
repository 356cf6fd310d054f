package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
    Service    string

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

const (
    axiomBuffer    = 1000
    axiomBatchSize = 200
)

var ax *axiomBatcher

// Init sets up the global logger: file rotation, console, optional Axiom
// forwarding. zerolog.Ctx falls back to it for contexts without a logger.
func Init(opts Options) error {
    if opts.Service == "" { opts.Service = "pdftoolkit" }

    var writers []io.Writer
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, os.Stdout)
    }

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        b, err := newAxiomBatcher(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            ax = b
            writers = append(writers, &axiomWriter{sink: b, service: opts.Service})
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" {
        lvl = zerolog.InfoLevel
    }

    global := zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
    log.Logger = global
    zerolog.DefaultContextLogger = &log.Logger
    return nil
}

// Close flushes any buffered external loggers.
func Close() {
    if ax != nil {
        _ = ax.Close()
    }
}

type eventSink interface {
    Send(ev axiom.Event)
}

// axiomWriter turns zerolog JSON lines into Axiom events. Debug events
// stay local.
type axiomWriter struct {
    sink    eventSink
    service string
}

func (w *axiomWriter) Write(p []byte) (int, error) {
    var ev map[string]any
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]any{"message": string(p), "level": "info"}
    }
    if lvl, ok := ev["level"].(string); ok && lvl == zerolog.LevelDebugValue {
        return len(p), nil
    }
    ev["service"] = w.service
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.sink.Send(axiom.Event(ev))
    return len(p), nil
}

// axiomBatcher buffers events and ingests them in batches.
type axiomBatcher struct {
    client  *axiom.Client
    dataset string
    ch      chan axiom.Event
    wg      sync.WaitGroup
    cancel  context.CancelFunc
}

func newAxiomBatcher(token, orgID, dataset string, flushEvery time.Duration) (*axiomBatcher, error) {
    if dataset == "" { dataset = "dev_pdftoolkit" }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, fmt.Errorf("axiom client: %w", err) }
    if flushEvery <= 0 { flushEvery = 10 * time.Second }

    ctx, cancel := context.WithCancel(context.Background())
    b := &axiomBatcher{
        client:  c,
        dataset: dataset,
        ch:      make(chan axiom.Event, axiomBuffer),
        cancel:  cancel,
    }
    b.wg.Add(1)
    go b.run(ctx, flushEvery)
    return b, nil
}

// Send enqueues ev, dropping it when the buffer is full.
func (b *axiomBatcher) Send(ev axiom.Event) {
    select {
    case b.ch <- ev:
    default:
    }
}

func (b *axiomBatcher) run(ctx context.Context, flushEvery time.Duration) {
    defer b.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, axiomBatchSize)
    flush := func() {
        if len(batch) == 0 { return }
        fctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if _, err := b.client.IngestEvents(fctx, b.dataset, batch); err != nil {
            fmt.Fprintf(os.Stderr, "axiom ingest: %v\n", err)
        }
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-ctx.Done():
            flush()
            return
        case <-ticker.C:
            flush()
        case ev := <-b.ch:
            batch = append(batch, ev)
            if len(batch) >= axiomBatchSize { flush() }
        }
    }
}

func (b *axiomBatcher) Close() error {
    b.cancel()
    b.wg.Wait()
    return nil
}

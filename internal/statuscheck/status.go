package statuscheck

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"
    "unicode/utf8"

    "github.com/rs/zerolog"
)

// Database models the backing store probed by /test.
type Database interface {
    Ping(ctx context.Context) error
    // Collections lists at most limit top-level entry names.
    Collections(ctx context.Context, limit int) ([]string, error)
}

// Bucket models the object storage probed by /test.
type Bucket interface {
    Name() string
    Head(ctx context.Context) error
}

// Checker answers the service liveness and diagnostics endpoints.
type Checker struct {
    db              Database
    bucket          Bucket
    databaseURLSet  bool
    databaseNameSet bool
}

// Options configures the Checker. Nil Database or Bucket means not configured.
type Options struct {
    Database        Database
    Bucket          Bucket
    DatabaseURLSet  bool
    DatabaseNameSet bool
}

// Report is the /test response body.
type Report struct {
    Backend          string   `json:"backend"`
    Database         string   `json:"database"`
    DatabaseURL      string   `json:"database_url"`
    DatabaseName     string   `json:"database_name"`
    ConnectionStatus string   `json:"connection_status"`
    Collections      []string `json:"collections"`
    Storage          string   `json:"storage"`
}

const maxCollections = 10

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        db:              opts.Database,
        bucket:          opts.Bucket,
        databaseURLSet:  opts.DatabaseURLSet,
        databaseNameSet: opts.DatabaseNameSet,
    }
}

func (c *Checker) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/", c.handleRoot)
    mux.HandleFunc("/api/hello", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusOK, map[string]string{"message": "Hello from the backend API!"})
    })
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "text/plain; charset=utf-8")
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusOK, c.Report(r.Context()))
    })
}

// handleRoot serves only the exact root path; "/" is the mux catch-all.
func (c *Checker) handleRoot(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/" {
        writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"message": "PDF Toolkit Backend Running"})
}

// Report probes the database and bucket. Probe failures are reported in the
// body, never as an error.
func (c *Checker) Report(ctx context.Context) Report {
    rep := Report{
        Backend:          "Running",
        Database:         "Not Available",
        DatabaseURL:      setOrNot(c.databaseURLSet),
        DatabaseName:     setOrNot(c.databaseNameSet),
        ConnectionStatus: "Not Connected",
        Collections:      []string{},
        Storage:          c.checkBucket(ctx),
    }
    if c.db == nil {
        return rep
    }

    pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.db.Ping(pctx); err != nil {
        zerolog.Ctx(ctx).Warn().Err(err).Msg("database ping failed")
        rep.Database = "Error: " + trimError(err, 50)
        return rep
    }
    rep.Database = "Available"
    rep.ConnectionStatus = "Connected"

    names, err := c.db.Collections(pctx, maxCollections)
    if err != nil {
        rep.Database = "Connected but Error: " + trimError(err, 50)
        return rep
    }
    if len(names) > maxCollections {
        names = names[:maxCollections]
    }
    rep.Collections = append(rep.Collections, names...)
    rep.Database = "Connected & Working"
    return rep
}

func (c *Checker) checkBucket(ctx context.Context) string {
    if c.bucket == nil {
        return "Bucket not configured"
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.bucket.Head(ctx); err != nil {
        zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", c.bucket.Name()).Msg("bucket probe failed")
        return fmt.Sprintf("Error: %s", trimError(err, 120))
    }
    return "Connected"
}

func setOrNot(ok bool) string {
    if ok {
        return "Set"
    }
    return "Not Set"
}

func trimError(err error, max int) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) <= max { return msg }
    // Cut on a rune boundary so the JSON report stays valid UTF-8.
    for max > 0 && !utf8.RuneStart(msg[max]) { max-- }
    return msg[:max]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

package config

import (
    "os"
    "runtime"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig controls the HTTP listener and upload handling.
type ServerConfig struct {
    Port             string
    AllowedOrigins   []string
    MaxUploadMB      int
    SniffUploads     bool // reject .pdf uploads whose bytes are not PDF
    MaxImagePixels   int  // width*height cap for uploaded images
    MaxConcurrentOps int
    AdmitTimeout     time.Duration // how long a request waits for an operation slot
    ReadTimeout      time.Duration
    WriteTimeout     time.Duration
    ShutdownTimeout  time.Duration
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (s ServerConfig) MaxUploadBytes() int64 { return int64(s.MaxUploadMB) << 20 }

// DiagnosticsConfig points the /test endpoint at the backing services.
type DiagnosticsConfig struct {
    DatabaseURL       string
    DatabaseName      string
    S3Bucket          string
    S3Region          string
    S3Endpoint        string
    S3AccessKeyID     string
    S3SecretAccessKey string
}

// Config is the top-level configuration.
type Config struct {
    Logging     LoggingConfig
    Axiom       AxiomConfig
    Server      ServerConfig
    Diagnostics DiagnosticsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
func FromEnv() Config {
    _ = godotenv.Load()

    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdftoolkit.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdftoolkit",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Server defaults
    cfg.Server = ServerConfig{
        Port:             getEnv("PORT", "8000"),
        AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
        MaxUploadMB:      parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100),
        SniffUploads:     parseBool(getEnv("SNIFF_UPLOADS", "true")),
        MaxImagePixels:   parseInt(getEnv("MAX_IMAGE_PIXELS", "178956970"), 178956970),
        MaxConcurrentOps: parseInt(getEnv("MAX_CONCURRENT_OPS", defaultConcurrency()), runtime.NumCPU()),
        AdmitTimeout:     parseDuration(getEnv("ADMIT_TIMEOUT", "30s"), 30*time.Second),
        ReadTimeout:      parseDuration(getEnv("READ_TIMEOUT", "60s"), 60*time.Second),
        WriteTimeout:     parseDuration(getEnv("WRITE_TIMEOUT", "300s"), 300*time.Second),
        ShutdownTimeout:  parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }
    if cfg.Server.MaxUploadMB <= 0 { cfg.Server.MaxUploadMB = 100 }
    if cfg.Server.MaxImagePixels <= 0 { cfg.Server.MaxImagePixels = 178956970 }
    if cfg.Server.MaxConcurrentOps <= 0 { cfg.Server.MaxConcurrentOps = runtime.NumCPU() }
    if len(cfg.Server.AllowedOrigins) == 0 { cfg.Server.AllowedOrigins = []string{"*"} }

    // Diagnostics
    cfg.Diagnostics = DiagnosticsConfig{
        DatabaseURL:       getEnv("DATABASE_URL", ""),
        DatabaseName:      getEnv("DATABASE_NAME", ""),
        S3Bucket:          getEnv("S3_BUCKET", ""),
        S3Region:          getEnv("S3_REGION", "us-east-1"),
        S3Endpoint:        getEnv("S3_ENDPOINT", ""),
        S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
        S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func defaultConcurrency() string { return strconv.Itoa(runtime.NumCPU()) }

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}

// ABOUTME: Entry point for the agentchat server
// ABOUTME: Serves the multi-agent chat API backed by SQLite and an LLM transport

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/agentchat/internal/api"
	"github.com/2389/agentchat/internal/chat"
	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/contextwin"
	"github.com/2389/agentchat/internal/dispatch"
	"github.com/2389/agentchat/internal/export"
	"github.com/2389/agentchat/internal/profile"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/store"
	"github.com/2389/agentchat/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                            _       _           _
  __ _  __ _  ___ _ __ | |_ ___| |__   __ _| |_
 / _' |/ _' |/ _ \ '_ \| __/ __| '_ \ / _' | __|
| (_| | (_| |  __/ | | | || (__| | | | (_| | |_
 \__,_|\__, |\___|_| |_|\__\___|_| |_|\__,_|\__|
       |___/
`

// getConfigPath returns the path to the agentchat config file.
// Priority: AGENTCHAT_CONFIG env var > XDG_CONFIG_HOME/agentchat/config.yaml > ~/.config/agentchat/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AGENTCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agentchat", "config.yaml")
}

// getDataPath returns the path to the agentchat data directory.
// Priority: XDG_DATA_HOME/agentchat > ~/.local/share/agentchat
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "agentchat")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: agentchat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the chat server")
		fmt.Println("  init                   Create a config file with a fresh JWT secret")
		fmt.Println("  token --owner ID       Mint a session token for an owner")
		fmt.Println("  agents                 List the registered agent profiles")
		fmt.Println("  health                 Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "agents":
		err = runAgents()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)

	// Completion transport. A missing credential is reported here and again
	// by the chat service; the server still starts.
	completer, err := buildCompleter(cfg, logger)
	if err != nil {
		if !errors.Is(err, transport.ErrMissingCredential) {
			return fmt.Errorf("configuring model transport: %w", err)
		}
		yellow.Print("    ▶ ")
		fmt.Println("Model:     NOT CONFIGURED (missing credential)")
	} else {
		green.Print("    ▶ ")
		fmt.Printf("Model:     %s mode\n", cfg.Model.TransportMode())
	}

	profiles, err := loadProfiles(cfg.Profiles.PacksDir)
	if err != nil {
		return err
	}
	green.Print("    ▶ ")
	fmt.Printf("Agents:    %d registered\n", len(profiles))
	fmt.Println()

	logger.Info("starting agentchat",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
		"agents", len(profiles),
	)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sessions := session.NewManager(db, []byte(cfg.Session.JWTSecret), cfg.Session.TokenTTL, logger)

	factory := func(ownerID string) *chat.Service {
		opts := []chat.Option{chat.WithLogger(logger)}
		if cfg.Context.TokenCeiling > 0 || cfg.Context.MaxMessages > 0 {
			opts = append(opts, chat.WithBudget(contextBudget(cfg)))
		}
		return chat.New(db, session.Static(ownerID), completer, opts...)
	}
	registry := api.NewRegistry(factory, profiles)
	server := api.NewServer(sessions, registry, export.NewRenderer(logger), logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildCompleter wires the dispatch pipeline around the configured
// transport. A nil Completer with ErrMissingCredential means the server
// runs without a model.
func buildCompleter(cfg *config.Config, logger *slog.Logger) (chat.Completer, error) {
	client, err := transport.NewClient(transport.Config{
		Mode:           cfg.Model.TransportMode(),
		APIKey:         cfg.Model.APIKey,
		BaseURL:        cfg.Model.BaseURL,
		Model:          cfg.Model.Model,
		CustomURL:      cfg.Model.CustomURL,
		DeploymentName: cfg.Model.DeploymentName,
		APIVersion:     cfg.Model.APIVersion,
		ClientID:       cfg.Model.ClientID,
		ClientSecret:   cfg.Model.ClientSecret,
	}, logger)
	if err != nil {
		return nil, err
	}

	var opts []dispatch.Option
	opts = append(opts, dispatch.WithLogger(logger))
	if cfg.Dispatch.MaxRetries > 0 {
		opts = append(opts, dispatch.WithMaxRetries(cfg.Dispatch.MaxRetries))
	}
	if cfg.Dispatch.Timeout > 0 {
		opts = append(opts, dispatch.WithTimeout(cfg.Dispatch.Timeout))
	}
	if cfg.Dispatch.BackoffBase > 0 {
		opts = append(opts, dispatch.WithBackoffBase(cfg.Dispatch.BackoffBase))
	}
	return dispatch.New(client, opts...), nil
}

// loadProfiles combines the built-in agents with any TOML profile packs.
func loadProfiles(packsDir string) ([]profile.Profile, error) {
	profiles := profile.Builtin()
	if packsDir == "" {
		return profiles, nil
	}
	extra, err := profile.LoadPacks(packsDir)
	if err != nil {
		return nil, fmt.Errorf("loading profile packs: %w", err)
	}
	return append(profiles, extra...), nil
}

// contextBudget applies configured limits over the defaults.
func contextBudget(cfg *config.Config) contextwin.Budget {
	b := contextwin.Budget{
		TokenCeiling: contextwin.DefaultTokenCeiling,
		MaxMessages:  contextwin.DefaultMaxMessages,
	}
	if cfg.Context.TokenCeiling > 0 {
		b.TokenCeiling = cfg.Context.TokenCeiling
	}
	if cfg.Context.MaxMessages > 0 {
		b.MaxMessages = cfg.Context.MaxMessages
	}
	return b
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// runInit writes a starter config file with a freshly generated JWT secret.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "agentchat.db")

	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# agentchat configuration
# Generated by agentchat init

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

session:
  jwt_secret: "%s"
  token_ttl: "24h"

model:
  mode: "openai"
  api_key: "${OPENAI_API_KEY}"
  model: "gpt-4o-mini"

dispatch:
  max_retries: 3
  timeout: "30s"
  backoff_base: "1s"

context:
  token_ceiling: 2000
  max_messages: 10

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("To start the server:")
	fmt.Println("  agentchat serve")
	return nil
}

// runToken mints a session token for a known owner ID, for CLI scripting.
func runToken() error {
	var ownerID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--owner" || arg == "-o":
			if i+1 >= len(args) {
				return fmt.Errorf("--owner requires a value")
			}
			ownerID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--owner="):
			ownerID = strings.TrimPrefix(arg, "--owner=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if ownerID == "" {
		return fmt.Errorf("--owner flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sessions := session.NewManager(db, []byte(cfg.Session.JWTSecret), cfg.Session.TokenTTL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	token, err := sessions.IssueToken(ownerID, 0)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// runAgents prints the registered agent profiles.
func runAgents() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	profiles, err := loadProfiles(cfg.Profiles.PacksDir)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	for _, p := range profiles {
		cyan.Printf("%-24s", p.ID)
		fmt.Printf(" %s\n", p.Description)
	}
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

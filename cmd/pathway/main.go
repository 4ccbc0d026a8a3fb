package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/pathway/internal/handler"
	appI18n "github.com/pavelanni/pathway/internal/i18n"
	"github.com/pavelanni/pathway/internal/llm"
	"github.com/pavelanni/pathway/internal/model"
	"github.com/pavelanni/pathway/internal/narration"
	"github.com/pavelanni/pathway/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pathway",
		Short: "Clinical intake and guided therapy-session engine",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), userCmd(), playCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `pathway --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addTTSFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("tts-url", "", "OpenAI-compatible speech API base URL (empty for the default endpoint)")
	f.String("tts-key", "", "API key for speech synthesis (empty disables generated narration)")
	f.String("tts-model", llm.DefaultModel, "Speech model name")
	f.String("tts-voice", llm.DefaultVoice, "Narration voice")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "pathway.db", "SQLite database path")
	f.StringSliceP("templates", "t", nil, "Template bundle files to import on start (repeatable)")
	f.String("audio-base-url", "", "Base URL of pre-recorded narration files")
	f.Duration("static-timeout", narration.DefaultStaticTimeout, "How long a pre-recorded file may take to become playable")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("admin-password", "", "Initial admin password (or set PATHWAY_ADMIN_PASSWORD)")
	addTTSFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PATHWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("pathway")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/pathway")
	v.AddConfigPath("/etc/pathway")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// speechClient returns nil when no API key is configured.
func speechClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	if v.GetString("tts-key") == "" {
		slog.Warn("no speech API key configured, generated narration disabled")
		return nil, nil
	}
	client := llm.New(
		v.GetString("tts-url"),
		v.GetString("tts-key"),
		v.GetString("tts-model"),
		v.GetString("tts-voice"),
	)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("speech API health check: %w", err)
	}
	slog.Info("speech endpoint OK", "url", v.GetString("tts-url"), "model", v.GetString("tts-model"))
	return client, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := commandContext(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := importTemplates(ctx, db, v.GetStringSlice("templates")); err != nil {
		return fmt.Errorf("import templates: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := speechClient(ctx, v)
	if err != nil {
		return err
	}
	var speech handler.Speaker
	if client != nil {
		speech = client
	}

	cfg := model.Config{
		AudioBaseURL:  v.GetString("audio-base-url"),
		StaticTimeout: v.GetDuration("static-timeout"),
		Lang:          lang,
		TTSVoice:      v.GetString("tts-voice"),
	}
	h := handler.New(db, speech, cfg)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"speech", speech != nil,
		"audio_base_url", cfg.AudioBaseURL,
	)
	return http.ListenAndServe(addr, h.Router())
}

// importTemplates loads template bundles, skipping files whose content was
// already imported.
func importTemplates(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("template file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Info("template file changed since last import, updating", "path", path)
		}

		bundle, err := store.ParseTemplateBundle(path, data)
		if err != nil {
			return err
		}
		if err := db.ImportBundle(ctx, bundle); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported templates", "path", path,
			"sessions", len(bundle.Sessions), "assessments", len(bundle.Assessments))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or PATHWAY_ADMIN_PASSWORD env var")
	}

	_, err = createUser(db, "admin", "Administrator", password, model.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}

func createUser(db *store.Store, username, displayName, password string, role model.UserRole) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if displayName == "" {
		displayName = username
	}
	return db.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
}

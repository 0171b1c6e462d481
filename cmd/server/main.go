package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"virtual-clinic/internal/core"
	"virtual-clinic/internal/db"
	httpserver "virtual-clinic/internal/http"
	"virtual-clinic/internal/kb"
	"virtual-clinic/internal/llm"
	"virtual-clinic/internal/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL must be set")
	}
	offline := os.Getenv("OFFLINE") == "1" || os.Getenv("OFFLINE") == "true"
	if !offline && os.Getenv("OPENAI_API_KEY") == "" {
		logger.Fatal("OPENAI_API_KEY must be set unless OFFLINE is enabled")
	}

	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		logger.Fatal("pinging database", zap.Error(err))
	}
	if err := db.Migrate(context.Background(), dbConn); err != nil {
		logger.Fatal("running migrations", zap.Error(err))
	}

	repo := db.NewRepository(dbConn)
	fixations := db.NewFixationStore(dbConn, durationEnv("FIXATION_TTL", db.DefaultFixationTTL))
	notifier := db.NewNotifier(dbConn, dsn, os.Getenv("NOTIFY_CHANNEL"), logger)

	var client llm.Client
	if offline {
		logger.Warn("offline mode active, all model calls are stubbed")
		client = llm.NewMockClient()
	} else {
		client = llm.WithRetry(llm.NewOpenAIClient(), llm.DefaultRetryConfig())
	}

	kbClient := kb.NewClient(os.Getenv("KB_URL"), os.Getenv("KB_TOKEN"))
	if !kbClient.Enabled() {
		logger.Info("knowledge base disabled, Amboss_ChatGPT mode degrades to plain feedback")
	}

	vault, err := httpserver.NewVault(os.Getenv("MATRIKEL_KEY"))
	if err != nil {
		logger.Fatal("loading matriculation key", zap.Error(err))
	}
	if vault == nil {
		logger.Info("no matriculation key set, matriculation numbers will not be stored")
	}

	roster, err := core.LoadRoster()
	if err != nil {
		logger.Fatal("loading name roster", zap.Error(err))
	}

	store := session.NewStore(durationEnv("SESSION_TTL", session.DefaultTTL), logger)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go store.Janitor(janitorCtx, 10*time.Minute)

	feedback := core.NewFeedbackService(client, kbClient, repo, notifier, fixations, offline, logger)

	srv, err := httpserver.NewServer(httpserver.Server{
		Sessions:   store,
		Cases:      core.NewCaseService(repo, fixations, roster, logger),
		Chat:       core.NewChatService(client, offline, logger),
		Exam:       core.NewExamService(client, offline, logger),
		Findings:   core.NewFindingsService(client, offline, logger),
		Feedback:   feedback,
		Repo:       repo,
		Fixations:  fixations,
		Stream:     notifier,
		Vault:      vault,
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		Offline:    offline,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("constructing server", zap.Error(err))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port
	logger.Info("listening", zap.String("addr", addr), zap.Bool("offline", offline))
	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

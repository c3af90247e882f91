// Command orchestrator runs the agentic build orchestrator: the HTTP/WS
// API, the chat bridge, and the project registry that drives per-project
// pipelines to completion.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ralph-build/orchestrator/pkg/api"
	"github.com/ralph-build/orchestrator/pkg/approval"
	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/chatbridge"
	"github.com/ralph-build/orchestrator/pkg/config"
	"github.com/ralph-build/orchestrator/pkg/installer"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/registry"
	"github.com/ralph-build/orchestrator/pkg/store"
	"github.com/ralph-build/orchestrator/pkg/syntaxgate"
	"github.com/ralph-build/orchestrator/pkg/version"
)

const broadcastWriteTimeout = 5 * time.Second

func main() {
	envPath := flag.String("env-path", getEnv("ENV_PATH", ".env"), "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)

	slog.Info("starting orchestrator", "version", version.Full(), "port", cfg.Port, "data_dir", cfg.DataDir)

	st, err := store.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	bc := broadcast.New(broadcastWriteTimeout)
	llm := llmclient.New(cfg.LLMClientConfig())
	checker := syntaxgate.New()
	inst := installer.New()

	settings := st.GetSettings()
	oracle := approval.New(settings.Chat.Enabled)

	factory := api.NewPipelineFactory(api.PipelineFactoryDeps{
		Store:      st,
		LLM:        llm,
		SyntaxGate: checker,
		Broadcast:  bc,
		Installer:  inst,
		Oracle:     oracle,
	})
	reg := registry.New(factory)

	projectRootFn := func(name string) string {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		return filepath.Join(cwd, "Projects", name)
	}

	server := api.NewServer(st, reg, bc, llm, nil, projectRootFn)

	chat := buildChatBridge(st, server, oracle)
	if chat != nil {
		server = api.NewServer(st, reg, bc, llm, chat, projectRootFn)
	}

	api.ResumeOnStart(st, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + strconv.Itoa(cfg.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}
}

// buildChatBridge constructs the chat bridge if chat settings are
// enabled and a chat id is configured; the wire transport (Telegram,
// Slack, etc.) is not implemented here, so outbound messages are logged
// rather than delivered until a concrete Sender is wired in.
// The Bridge shares the same Oracle as every project's Pipeline: only
// one approval rendezvous is ever outstanding process-wide, so the
// single pre-authorised chat operator always resolves whichever
// project's gate is currently pending.
func buildChatBridge(st *store.Store, creator chatbridge.ProjectCreator, oracle *approval.Oracle) *chatbridge.Bridge {
	settings := st.GetSettings()
	if !settings.Chat.Enabled || settings.Chat.ChatID == "" {
		return nil
	}
	return chatbridge.New(settings.Chat.ChatID, loggingSender{}, st, creator, oracle)
}

// loggingSender is the default chatbridge.Sender until a real chat
// transport is wired in; it simply logs what would have been sent.
type loggingSender struct{}

func (loggingSender) Send(chatID, text string) error {
	slog.Info("chat message (no transport configured)", "chat_id", chatID, "text", text)
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}


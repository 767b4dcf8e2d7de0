// Command ragflowd is the process entry point: "serve" runs the
// long-lived websocket transport, "run" executes a single flow instance
// read from a JSON file and prints its outputs (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/config"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/flow/emit"
	"github.com/ragflow-go/ragflow/memory"
	"github.com/ragflow-go/ragflow/pipeline"
	"github.com/ragflow-go/ragflow/providers"
	"github.com/ragflow-go/ragflow/retrieval/runners"
	"github.com/ragflow-go/ragflow/transport"
)

// Exit codes (spec.md §6).
const (
	exitOK                    = 0
	exitConfigurationError    = 1
	exitDependencyUnreachable = 2
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfigurationError)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: configuration error: %v\n", err)
		os.Exit(exitConfigurationError)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe(cfg))
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "ragflowd: run requires a flow instance JSON file path")
			os.Exit(exitConfigurationError)
		}
		os.Exit(runFlowFile(cfg, os.Args[2]))
	default:
		usage()
		os.Exit(exitConfigurationError)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ragflowd serve            start the websocket transport")
	fmt.Fprintln(os.Stderr, "  ragflowd run <flow.json>  execute one flow instance and print its outputs")
}

// buildEngine wires the shared node runner catalogue and a logging event
// bus, the same pair every flow execution in this process uses.
func buildEngine() *flow.Engine {
	reg := flow.NewRegistry()
	runners.Register(reg)
	reg.Freeze()
	bus := emit.NewBus(emit.NewLogEmitter(os.Stderr, true))
	return flow.NewEngine(reg, bus)
}

// embeddingService selects an embedding provider from cfg, defaulting to
// the dependency-free mock so `run` and local development work without API
// keys configured.
func embeddingService(cfg config.Config) collection.EmbeddingService {
	switch cfg.EmbeddingProvider {
	case "openai":
		return providers.NewOpenAIEmbedding(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	default:
		return &providers.MockEmbedding{}
	}
}

// completionService selects a completion provider from cfg.
func completionService(cfg config.Config) collection.CompletionService {
	switch cfg.CompletionProvider {
	case "openai":
		return providers.NewOpenAICompletion(cfg.OpenAIAPIKey, cfg.CompletionModel, 0.7)
	case "anthropic":
		return providers.NewAnthropicCompletion(cfg.AnthropicAPIKey, cfg.CompletionModel, 1024, 0.7)
	case "gemini":
		return providers.NewGeminiCompletion(cfg.GeminiAPIKey, cfg.CompletionModel, 0.7)
	default:
		return &providers.MockCompletion{}
	}
}

func runServe(cfg config.Config) int {
	engine := buildEngine()
	pl := pipeline.New(engine)

	bot := pipeline.BotConfig{
		ID:           "default",
		RetrieveMode: pipeline.RetrieveClassic,
		TopK:         5,
		Completion: pipeline.CompletionConfig{
			Provider:       cfg.CompletionProvider,
			Model:          cfg.CompletionModel,
			MaxTokens:      1024,
			ContextWindow:  cfg.ContextWindow,
			PromptTemplate: "Answer the question using the context below.\n\nContext:\n{context}\n\nQuestion: {query}",
		},
		Welcome:               pipeline.WelcomeConfig{Hello: "Ask me anything about this collection."},
		EnableSensitiveFilter: cfg.EnableSensitiveFilter,
	}

	coll := collection.Collection{
		Embedding: embeddingService(cfg),
	}
	completion := completionService(cfg)

	var quota *transport.Quota
	if cfg.DailyQuota > 0 {
		quota = transport.NewQuota(cfg.DailyQuota)
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		user := r.URL.Query().Get("user")
		if user == "" {
			user = r.RemoteAddr
		}
		sess := &transport.Session{
			Conn:       conn,
			Pipeline:   pl,
			Bot:        bot,
			Collection: coll,
			Completion: completion,
			History:    memory.NewInMemoryHistory(),
			User:       user,
			Quota:      quota,
		}
		if err := sess.Serve(r.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "ragflowd: session %s ended: %v\n", user, err)
		}
	})

	fmt.Fprintf(os.Stderr, "ragflowd: listening on %s\n", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: server stopped: %v\n", err)
		return exitDependencyUnreachable
	}
	return exitOK
}

// runFile is the on-disk shape `run` reads: a flow instance plus the
// globals and identity fields an execution needs beyond the registry.
type runFile struct {
	Flow    *flow.FlowInstance `json:"flow"`
	Globals map[string]any     `json:"globals"`
	User    string             `json:"user"`
	Query   string             `json:"query"`
}

func runFlowFile(cfg config.Config, path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: reading %s: %v\n", path, err)
		return exitConfigurationError
	}

	var rf runFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: parsing %s: %v\n", path, err)
		return exitConfigurationError
	}
	if rf.Flow == nil {
		fmt.Fprintln(os.Stderr, "ragflowd: flow instance JSON has no \"flow\" field")
		return exitConfigurationError
	}

	engine := buildEngine()
	system := flow.SystemInput{
		User:  rf.User,
		Query: rf.Query,
		Collection: collection.Collection{
			Embedding: embeddingService(cfg),
		},
		Completion: completionService(cfg),
		Ctx:        context.Background(),
	}

	exec, err := engine.Execute(context.Background(), rf.Flow, system, rf.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: execution failed: %v\n", err)
		if flow.ClassifyError(err) == flow.KindStructural {
			return exitConfigurationError
		}
		return exitDependencyUnreachable
	}

	out, err := json.MarshalIndent(exec.Context.Outputs(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflowd: encoding outputs: %v\n", err)
		return exitDependencyUnreachable
	}
	fmt.Println(string(out))
	return exitOK
}

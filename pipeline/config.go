package pipeline

// RetrieveMode selects which retrieval flow a bot's turn runs (spec.md
// §4.9 step 3).
type RetrieveMode string

const (
	RetrieveClassic RetrieveMode = "classic"
	RetrieveGraph   RetrieveMode = "graph"
	RetrieveMix     RetrieveMode = "mix"
)

// EmbeddingConfig names the embedding provider/model a bot's flow instances
// assume when probing vector dimensions and recording provenance.
type EmbeddingConfig struct {
	Provider string
	Model    string
}

// CompletionConfig names the completion provider/model and generation
// parameters a bot's llm node binds (spec.md §4.6.7).
type CompletionConfig struct {
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	ContextWindow  int
	PromptTemplate string

	// RelatedQuestionTemplate is the second, lightweight completion call's
	// prompt template (SPEC_FULL.md §10 supplemented feature). Empty means
	// related-question generation is skipped even if RetrieveMode would
	// otherwise permit it.
	RelatedQuestionTemplate string
}

// FAQ is one welcome-screen suggested question (spec.md §4.9 Degradation).
type FAQ struct {
	Question string
}

// WelcomeConfig configures the greeting shown at session start and the
// degradation fallback used when retrieval returns nothing.
type WelcomeConfig struct {
	Hello string
	FAQ   []FAQ

	// Oops is returned verbatim as the answer, skipping completion
	// entirely, when retrieval yields no candidates (spec.md §4.9
	// Degradation). Empty means fall through to a normal completion call
	// with an empty context instead.
	Oops string
}

// BotConfig is the per-bot configuration a pipeline Run call is
// parameterized by (spec.md §4.9: "Inputs: bot_config, collection,
// history_handle, query, message_id").
type BotConfig struct {
	ID           string
	RetrieveMode RetrieveMode
	CollectionIDs []string

	Embedding  EmbeddingConfig
	Completion CompletionConfig
	Welcome    WelcomeConfig

	TopK             int
	ScoreThreshold   float64
	UseKeywordFilter bool

	// MemoryLimitCount and MemoryLimitLength cap how much conversation
	// history query_with_history composition draws on (spec.md §4.9 step
	// 1); zero means the package default (10 messages, no length cap).
	MemoryLimitCount  int
	MemoryLimitLength int
	UseAIMemory       bool

	RelatedQuestions bool

	// EnableSensitiveFilter redacts credential-shaped spans (API keys,
	// password assignments, etc.) out of retrieved document text before it
	// is packed into the completion prompt (SPEC_FULL.md §10).
	EnableSensitiveFilter bool
}

const defaultMemoryLimitCount = 10

func (c BotConfig) memoryLimitCount() int {
	if c.MemoryLimitCount > 0 {
		return c.MemoryLimitCount
	}
	return defaultMemoryLimitCount
}

func (c BotConfig) topK() int {
	if c.TopK > 0 {
		return c.TopK
	}
	return 5
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/rs/zerolog/log"

	knowledgex "github.com/pinnaclehs/intake-agent/agent/knowledge"
	orchestratorx "github.com/pinnaclehs/intake-agent/agent/orchestrator"
	storex "github.com/pinnaclehs/intake-agent/agent/store"
	toolx "github.com/pinnaclehs/intake-agent/agent/tool"
	configx "github.com/pinnaclehs/intake-agent/pkg/config"
	_ "github.com/pinnaclehs/intake-agent/pkg/logger/autoload"
	llmx "github.com/pinnaclehs/intake-agent/pkg/llm"
)

type AppConfig struct {
	DatabasePath       string `envconfig:"DATABASE_PATH" split_words:"true" default:"pinnacle.db"`
	KnowledgeDir       string `envconfig:"KNOWLEDGE_DIR" split_words:"true" default:"knowledge"`
	EmbeddingCachePath string `envconfig:"EMBEDDING_CACHE_PATH" split_words:"true" default:"knowledge_embeddings.json"`
	HistoryWindow      int    `envconfig:"HISTORY_WINDOW" split_words:"true" default:"20"`
	MaxToolRounds      int    `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"10"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENAI")

	st, err := storex.Open(appCfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	client, err := llmx.NewClient(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build llm client")
	}

	var toolOpts []toolx.Option
	if retriever := buildRetriever(client, *llmCfg, *appCfg); retriever != nil {
		toolOpts = append(toolOpts, toolx.WithKnowledge(retrieverGateway{retriever}))
	}

	catalog, err := toolx.NewCatalog(st, toolOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool catalog")
	}

	chat, err := llmx.NewChatService(client, *llmCfg, catalog.Definitions())
	if err != nil {
		log.Fatal().Err(err).Msg("build chat service")
	}

	agent, err := orchestratorx.New(st, chat, catalog,
		orchestratorx.WithMaxRounds(appCfg.MaxToolRounds),
		orchestratorx.WithHistoryWindow(appCfg.HistoryWindow),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	if err := runSession(ctx, agent); err != nil {
		log.Fatal().Err(err).Msg("session failed")
	}
}

// buildRetriever wires the knowledge base only when the corpus directory
// exists; the search tool is simply not registered otherwise.
func buildRetriever(client *openai.Client, cfg llmx.Config, app AppConfig) *knowledgex.Retriever {
	info, err := os.Stat(app.KnowledgeDir)
	if err != nil || !info.IsDir() {
		log.Debug().Str("dir", app.KnowledgeDir).Msg("no knowledge directory, search tool disabled")
		return nil
	}

	embedder, err := llmx.NewEmbeddingService(client, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("embedding service unavailable, search tool disabled")
		return nil
	}

	retriever, err := knowledgex.NewRetriever(app.KnowledgeDir, app.EmbeddingCachePath, embedder)
	if err != nil {
		log.Warn().Err(err).Msg("knowledge retriever unavailable, search tool disabled")
		return nil
	}
	return retriever
}

// retrieverGateway adapts knowledge.Retriever to the tool catalog's searcher
// interface.
type retrieverGateway struct {
	retriever *knowledgex.Retriever
}

func (g retrieverGateway) Search(ctx context.Context, query string, topK int) ([]toolx.KnowledgeMatch, error) {
	matches, err := g.retriever.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]toolx.KnowledgeMatch, len(matches))
	for i, m := range matches {
		out[i] = toolx.KnowledgeMatch{
			Content:    m.Content,
			Source:     m.Source,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}

func runSession(ctx context.Context, agent *orchestratorx.Service) error {
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("  Pinnacle Home Services - Virtual Assistant")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Type 'quit' to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("Please enter your phone number: ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	phone := strings.TrimSpace(scanner.Text())
	if phone == "" {
		fmt.Println("Phone number is required. Goodbye!")
		return nil
	}

	sess, err := agent.NewSession(ctx, phone)
	if err != nil {
		return err
	}
	if n := sess.ResumedTurns(); n > 0 {
		fmt.Printf("\n  [Returning customer detected - loading %d previous messages]\n\n", n)
	}

	greeting, err := agent.Greet(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Printf("Agent: %s\n\n", greeting)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			fmt.Println("\nThanks for contacting Pinnacle Home Services. Goodbye!")
			return nil
		}

		reply, err := agent.Reply(ctx, sess, input)
		if err != nil {
			if errors.Is(err, orchestratorx.ErrEmptyMessage) {
				continue
			}
			// The turn failed; the session itself stays usable.
			log.Error().Err(err).Msg("turn failed")
			fmt.Println("\nAgent: Sorry, something went wrong on my end. Could you say that again?")
			fmt.Println()
			continue
		}
		fmt.Printf("\nAgent: %s\n\n", reply)
	}
}

// Package knowledge ranks a small embedded text corpus by similarity to a
// query. The corpus is built once from plain-text documents and the chunk
// vectors are cached to disk; invalidation is deleting the cache file.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

const minChunkLength = 20

// Embedder turns a piece of text into a vector. Implemented by
// pkg/llm.EmbeddingService.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunk is one retrievable section of a source document with its cached
// embedding.
type Chunk struct {
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
}

// Match is one ranked search hit.
type Match struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// Retriever loads, embeds, and ranks knowledge chunks. It is built lazily on
// first use and read-only afterward.
type Retriever struct {
	dir       string
	cachePath string
	embedder  Embedder

	chunks []Chunk
	built  bool
}

func NewRetriever(dir, cachePath string, embedder Embedder) (*Retriever, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("knowledge directory is required")
	}
	if strings.TrimSpace(cachePath) == "" {
		return nil, errors.New("embedding cache path is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	return &Retriever{
		dir:       dir,
		cachePath: cachePath,
		embedder:  embedder,
	}, nil
}

// Build loads the chunk set, from the cache artifact when present, otherwise
// by reading and embedding the source documents and writing the cache.
func (r *Retriever) Build(ctx context.Context) error {
	if r.built {
		return nil
	}

	if chunks, err := r.loadCache(); err != nil {
		return err
	} else if chunks != nil {
		log.Debug().Int("chunks", len(chunks)).Str("cache", r.cachePath).Msg("loaded cached embeddings")
		r.chunks = chunks
		r.built = true
		return nil
	}

	chunks, err := loadDocuments(r.dir)
	if err != nil {
		return err
	}

	for i := range chunks {
		vector, err := r.embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return fmt.Errorf("embed chunk from %s: %w", chunks[i].Source, err)
		}
		chunks[i].Embedding = vector
	}

	if err := r.writeCache(chunks); err != nil {
		return err
	}

	log.Info().Int("chunks", len(chunks)).Msg("knowledge base built")
	r.chunks = chunks
	r.built = true
	return nil
}

// Search returns at most topK chunks ordered by descending cosine similarity
// to the query.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := r.Build(ctx); err != nil {
		return nil, err
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, 0, len(r.chunks))
	for _, chunk := range r.chunks {
		matches = append(matches, Match{
			Content:    chunk.Content,
			Source:     chunk.Source,
			Similarity: cosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (r *Retriever) loadCache() ([]Chunk, error) {
	raw, err := os.ReadFile(r.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, fmt.Errorf("decode embedding cache %s: %w", r.cachePath, err)
	}
	return chunks, nil
}

func (r *Retriever) writeCache(chunks []Chunk) error {
	encoded, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode embedding cache: %w", err)
	}
	if err := os.WriteFile(r.cachePath, encoded, 0o644); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return nil
}

// loadDocuments reads every .txt file in dir and splits it into non-trivial
// blank-line-separated sections.
func loadDocuments(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge directory: %w", err)
	}

	var chunks []Chunk
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		for _, section := range strings.Split(string(raw), "\n\n") {
			section = strings.TrimSpace(section)
			if len(section) < minChunkLength {
				continue
			}
			chunks = append(chunks, Chunk{
				Source:  entry.Name(),
				Content: section,
			})
		}
	}
	return chunks, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

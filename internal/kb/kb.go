// Package kb is the retrieval side of the tutor: documents are split into
// overlapping chunks, stored once per content hash, indexed for TF-IDF
// retrieval and used as context for generated answers.
package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ScientiaCapital/claude-education-platform/internal/ai"
	"github.com/ScientiaCapital/claude-education-platform/internal/cache"
	"github.com/ScientiaCapital/claude-education-platform/internal/ratelimit"
	"github.com/ScientiaCapital/claude-education-platform/internal/retry"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 5
)

var ErrNoGenerator = errors.New("kb: no text generator configured")

// Document is one piece of source material before chunking.
type Document struct {
	Source  string
	Title   string
	URL     string
	Content string
}

// Chunk is an indexed passage of a document.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Index      int    `json:"chunk_index"`
	Content    string `json:"content"`
}

type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is a generated reply with the passages it was grounded on.
type Answer struct {
	Question string
	Text     string
	Sources  []Hit
	Cost     float64
}

// ChunkStore persists chunks. *cache.Store implements it.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []cache.Chunk) (int, error)
	LoadChunks(ctx context.Context) ([]cache.Chunk, error)
}

type chunkMeta struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Index int    `json:"chunk_index"`
}

type Option func(*KnowledgeBase)

func WithLogger(l *slog.Logger) Option {
	return func(kb *KnowledgeBase) { kb.log = l }
}

// WithChunking sets chunk size and overlap in runes.
func WithChunking(size, overlap int) Option {
	return func(kb *KnowledgeBase) {
		if size > 0 {
			kb.size = size
		}
		if overlap >= 0 && overlap < kb.size {
			kb.overlap = overlap
		}
	}
}

// WithTopK sets how many passages Search and Ask return by default.
func WithTopK(k int) Option {
	return func(kb *KnowledgeBase) {
		if k > 0 {
			kb.topK = k
		}
	}
}

// WithGenerator enables Ask. Calls draw on limiter quota under the
// generator's name and are retried by h; either may be nil.
func WithGenerator(g ai.Generator, limiter *ratelimit.Limiter, h *retry.Handler) Option {
	return func(kb *KnowledgeBase) {
		kb.gen = g
		kb.limiter = limiter
		if h != nil {
			kb.retry = h
		}
	}
}

type KnowledgeBase struct {
	store   ChunkStore
	gen     ai.Generator
	limiter *ratelimit.Limiter
	retry   *retry.Handler

	size    int
	overlap int
	topK    int
	log     *slog.Logger

	mu    sync.RWMutex
	index *Index
}

// Open builds a knowledge base and indexes every chunk already in store.
// store may be nil for a purely in-memory knowledge base.
func Open(ctx context.Context, store ChunkStore, opts ...Option) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		store:   store,
		retry:   retry.NewHandler(3, 0),
		size:    defaultChunkSize,
		overlap: defaultChunkOverlap,
		topK:    defaultTopK,
		log:     slog.Default(),
		index:   NewIndex(),
	}
	for _, opt := range opts {
		opt(kb)
	}
	if store == nil {
		return kb, nil
	}

	stored, err := store.LoadChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	for _, c := range stored {
		kb.index.Add(fromStored(c))
	}
	kb.log.Debug("knowledge base loaded", "chunks", kb.index.Len())
	return kb, nil
}

// Len returns the number of indexed chunks.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.Len()
}

// Add chunks and indexes documents, skipping empty ones and chunks already
// present. It returns the number of new chunks.
func (kb *KnowledgeBase) Add(ctx context.Context, docs []Document) (int, error) {
	var fresh []Chunk
	kb.mu.RLock()
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		docID := contentHash(d.Content)
		for i, text := range Split(d.Content, kb.size, kb.overlap) {
			c := Chunk{
				ID:         fmt.Sprintf("%s_%d", docID, i),
				DocumentID: docID,
				Source:     d.Source,
				Title:      d.Title,
				URL:        d.URL,
				Index:      i,
				Content:    text,
			}
			if !kb.index.Has(c.ID) {
				fresh = append(fresh, c)
			}
		}
	}
	kb.mu.RUnlock()

	if len(fresh) == 0 {
		return 0, nil
	}
	if kb.store != nil {
		stored := make([]cache.Chunk, len(fresh))
		for i, c := range fresh {
			stored[i] = toStored(c)
		}
		if _, err := kb.store.SaveChunks(ctx, stored); err != nil {
			return 0, fmt.Errorf("saving chunks: %w", err)
		}
	}

	added := 0
	kb.mu.Lock()
	for _, c := range fresh {
		if kb.index.Add(c) {
			added++
		}
	}
	kb.mu.Unlock()

	kb.log.Info("added chunks to knowledge base", "chunks", added, "documents", len(docs))
	return added, nil
}

// Search returns the k passages most relevant to query; k <= 0 uses the
// configured default.
func (kb *KnowledgeBase) Search(query string, k int) []Hit {
	if k <= 0 {
		k = kb.topK
	}
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.Search(query, k)
}

// Ask retrieves context for question and generates an answer from it.
func (kb *KnowledgeBase) Ask(ctx context.Context, question string, k int) (Answer, error) {
	hits := kb.Search(question, k)
	return kb.Generate(ctx, question, hits)
}

// Generate answers question using hits as context.
func (kb *KnowledgeBase) Generate(ctx context.Context, question string, hits []Hit) (Answer, error) {
	if kb.gen == nil {
		return Answer{}, ErrNoGenerator
	}
	prompt := Prompt(question, hits)
	text, err := retry.Do(ctx, kb.retry, func(ctx context.Context) (string, error) {
		if kb.limiter != nil {
			if _, err := kb.limiter.Acquire(ctx, kb.gen.Name()); err != nil && !errors.Is(err, ratelimit.ErrUnknownService) {
				return "", err
			}
		}
		return kb.gen.Generate(ctx, prompt)
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}
	return Answer{
		Question: question,
		Text:     strings.TrimSpace(text),
		Sources:  hits,
		Cost:     ai.Cost(prompt, text),
	}, nil
}

// Prompt builds the answer prompt with one "Source/Content" block per hit.
func Prompt(question string, hits []Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", h.Chunk.Title, h.Chunk.Content)
	}
	return fmt.Sprintf(`Based on the following context, answer the question. Be educational and engaging for students learning about AI and programming.

Context:
%s

Question: %s

Answer:`, strings.Join(blocks, "\n\n"), question)
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

func toStored(c Chunk) cache.Chunk {
	meta, _ := json.Marshal(chunkMeta{Title: c.Title, URL: c.URL, Index: c.Index})
	return cache.Chunk{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Source:     c.Source,
		Content:    c.Content,
		Metadata:   meta,
	}
}

func fromStored(s cache.Chunk) Chunk {
	var meta chunkMeta
	_ = json.Unmarshal(s.Metadata, &meta)
	return Chunk{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		Source:     s.Source,
		Title:      meta.Title,
		URL:        meta.URL,
		Index:      meta.Index,
		Content:    s.Content,
	}
}

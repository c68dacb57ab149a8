// Package retrieval implements semantic search over audit events: events are
// embedded, stored in SQLite and ranked by cosine distance to the query.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oracle-audit-analyzer/internal/database"
	"oracle-audit-analyzer/internal/models"
)

// DefaultConcurrency bounds parallel embedding calls during indexing
const DefaultConcurrency = 4

// Document is one audit event to index
type Document struct {
	ID    string
	LogID string
	Event models.AuditEvent
}

// DocumentsFor builds the documents of a log, one per event in order
func DocumentsFor(logID string, events []models.AuditEvent) []Document {
	docs := make([]Document, len(events))
	for i, e := range events {
		docs[i] = Document{ID: database.DocID(logID, i), LogID: logID, Event: e}
	}
	return docs
}

// Query is a semantic search request. An empty LogID searches every log.
type Query struct {
	Text  string
	TopK  int
	LogID string
}

// Match is one search hit
type Match struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Store is a vector store over the audit_events table
type Store struct {
	db          database.DB
	embedder    Embedder
	concurrency int
	logger      *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithConcurrency sets how many documents are embedded in parallel
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store writing to db and embedding with embedder
func NewStore(db database.DB, embedder Embedder, opts ...Option) *Store {
	s := &Store{
		db:          db,
		embedder:    embedder,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index embeds and stores documents. Embedding runs in parallel; storage is a
// single transaction, so either every document is indexed or none is.
func (s *Store) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	records := make([]database.Record, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			text := doc.Event.Document()
			vec, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embedding %s: %w", doc.ID, err)
			}
			records[i] = database.Record{
				DocID:     doc.ID,
				LogID:     doc.LogID,
				Position:  i,
				Event:     doc.Event,
				Document:  text,
				Embedding: vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	inserted, err := database.InsertRecords(s.db, records)
	if err != nil {
		return fmt.Errorf("storing embeddings: %w", err)
	}

	s.logger.Debug("indexed documents", zap.Int64("count", inserted))
	return nil
}

// Search returns up to TopK stored events ranked by ascending cosine distance
// to the query text. Ties keep storage order.
func (s *Store) Search(ctx context.Context, q Query) ([]Match, error) {
	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	records, err := database.LoadEmbedded(s.db, q.LogID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		record   database.Record
		distance float64
	}
	candidates := make([]scored, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != len(vec) {
			s.logger.Debug("skipping record with mismatched dimensions",
				zap.String("doc_id", r.DocID), zap.Int("dims", len(r.Embedding)), zap.Int("query_dims", len(vec)))
			continue
		}
		candidates = append(candidates, scored{record: r, distance: CosineDistance(vec, r.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if q.TopK > 0 && len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{
			Document: c.record.Document,
			Metadata: c.record.Event.Metadata(),
			Distance: c.distance,
		}
	}
	return matches, nil
}

// DeleteLog removes the documents of one log
func (s *Store) DeleteLog(ctx context.Context, logID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := database.DeleteLog(s.db, logID)
	if err != nil {
		return err
	}
	s.logger.Debug("deleted log documents", zap.String("log_id", logID), zap.Int64("count", removed))
	return nil
}

// Reset removes every document
func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return database.DeleteAll(s.db)
}

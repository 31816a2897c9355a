package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/engram-ai/engram-go/internal/graph"
)

// Key prefixes for the full-text index.
const (
	prefixFTSToken  = "fts:t:" // fts:t:token:entityID -> frequency
	prefixFTSTokens = "fts:m:" // fts:m:entityID -> JSON list of indexed tokens
)

// indexedContentCap bounds how much entity content feeds the index.
const indexedContentCap = 500

var (
	separatorRe = regexp.MustCompile(`[_\.\-\s:/,;]+`)
	camelRe     = regexp.MustCompile(`([a-z])([A-Z])`)
	alphaNumRe  = regexp.MustCompile(`([a-zA-Z])(\d)`)
	numAlphaRe  = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// tokenize splits text into searchable tokens.
// Handles camelCase, snake_case, dot notation, and number boundaries, so
// identifiers like "UserService.login2" match "user", "service" and "login".
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := make(map[string]bool)

	// Keep the whole text as a token when it is a single word, so exact
	// identifiers stay searchable as typed.
	if !strings.ContainsAny(text, " \t\n") {
		tokens[strings.ToLower(text)] = true
	}

	for _, part := range separatorRe.Split(text, -1) {
		if part != "" {
			tokens[strings.ToLower(part)] = true
		}
	}

	// Split camelCase: "UserService" -> "User", "Service"
	for _, part := range strings.Fields(camelRe.ReplaceAllString(text, "$1 $2")) {
		tokens[strings.ToLower(part)] = true
	}

	// Split on number boundaries: "HTTP2" -> "HTTP", "2"
	numSplit := alphaNumRe.ReplaceAllString(text, "$1 $2")
	numSplit = numAlphaRe.ReplaceAllString(numSplit, "$1 $2")
	for _, part := range strings.Fields(numSplit) {
		tokens[strings.ToLower(part)] = true
	}

	result := make([]string, 0, len(tokens))
	for token := range tokens {
		if len(token) >= 2 {
			result = append(result, token)
		}
	}
	return result
}

// entityText gathers the searchable fields of an entity: name, tags,
// observations, and content capped at indexedContentCap bytes.
func entityText(entity *graph.Entity) string {
	var sb strings.Builder
	sb.WriteString(entity.Name)
	for _, tag := range entity.Tags {
		sb.WriteString(" ")
		sb.WriteString(tag)
	}
	for _, obs := range entity.Observations() {
		sb.WriteString(" ")
		sb.WriteString(obs)
	}
	content := entity.Content
	if len(content) > indexedContentCap {
		content = content[:indexedContentCap]
	}
	sb.WriteString(" ")
	sb.WriteString(content)
	return sb.String()
}

// entityTokenFreqs tokenizes an entity and counts token frequencies.
func entityTokenFreqs(entity *graph.Entity) map[string]int {
	freqs := make(map[string]int)
	for _, token := range tokenize(entityText(entity)) {
		freqs[token]++
	}
	return freqs
}

// ftsIndex is an inverted token index persisted in Badger.
//
// Each entity's token list is stored under fts:m: so re-indexing and
// removal touch only that entity's keys instead of scanning the token
// space.
type ftsIndex struct {
	db *badger.DB
}

// indexEntity adds or replaces an entity in the index within txn.
func (f *ftsIndex) indexEntity(txn *badger.Txn, entity *graph.Entity) error {
	if err := f.removeEntity(txn, entity.ID); err != nil {
		return err
	}

	freqs := entityTokenFreqs(entity)
	tokens := make([]string, 0, len(freqs))
	for token, freq := range freqs {
		key := fmt.Sprintf("%s%s:%s", prefixFTSToken, token, entity.ID)
		if err := txn.Set([]byte(key), []byte(strconv.Itoa(freq))); err != nil {
			return fmt.Errorf("setting token index: %w", err)
		}
		tokens = append(tokens, token)
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshaling token list: %w", err)
	}
	if err := txn.Set([]byte(prefixFTSTokens+entity.ID), data); err != nil {
		return fmt.Errorf("setting token list: %w", err)
	}
	return nil
}

// removeEntity drops every index key of the entity within txn.
func (f *ftsIndex) removeEntity(txn *badger.Txn, entityID string) error {
	item, err := txn.Get([]byte(prefixFTSTokens + entityID))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting token list: %w", err)
	}

	var tokens []string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tokens)
	}); err != nil {
		return fmt.Errorf("unmarshaling token list: %w", err)
	}

	for _, token := range tokens {
		key := fmt.Sprintf("%s%s:%s", prefixFTSToken, token, entityID)
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("deleting token index: %w", err)
		}
	}
	return txn.Delete([]byte(prefixFTSTokens + entityID))
}

// scores returns entityID -> summed term frequency for the query tokens.
func (f *ftsIndex) scores(txn *badger.Txn, query string) map[string]float64 {
	result := make(map[string]float64)

	for _, token := range tokenize(query) {
		prefix := fmt.Sprintf("%s%s:", prefixFTSToken, token)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			entityID := strings.TrimPrefix(string(item.Key()), prefix)

			var freq int
			_ = item.Value(func(val []byte) error {
				freq, _ = strconv.Atoi(string(val))
				return nil
			})
			result[entityID] += float64(freq)
		}
		it.Close()
	}

	return result
}

// Package search provides a deterministic, concurrency-safe in-memory
// knowledge-base index built from Markdown sections. It is intentionally
// small and dependency-free, but engineered with production-grade ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Stop-word aware tokenization tuned for support queries
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//   - Backward-compatible Index interface (TopK(query, k int) []Result)
//
// Scoring is TF-IDF: each query term contributes tf * (ln(N/df) + 1) * qf,
// tripled when the term also appears in the section title. Sections are the
// ## / ### blocks of the source document, so a hit carries enough context to
// ground a customer-facing answer.
package search

import (
	"bytes"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Section is one heading-delimited block of the source document.
type Section struct {
	Title string
	Body  string
}

// Result is a ranked section with its relevance score.
type Result struct {
	Section Section
	Score   float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		stopwords: defaultStopwords,
		maxDocs:   0,
	}
}

// WithStopwords replaces the default stop-word list.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps the number of indexed sections.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// Connective and filler words that carry no relevance signal in support
// queries. Greetings are included so "hi, how do I export" ranks on "export".
var defaultStopwords = func() map[string]struct{} {
	words := []string{
		"the", "a", "an", "is", "are", "i", "my", "we", "you", "it", "me",
		"to", "for", "of", "in", "on", "and", "or", "but", "not", "how",
		"do", "can", "what", "this", "that", "with", "from", "have", "has",
		"be", "was", "were", "been", "does", "did", "will", "would", "if",
		"hi", "hello", "hey", "thanks", "thank", "please", "help", "about",
		"so", "at", "by", "as", "our", "your", "its", "all", "any", "up",
		"just", "get", "also", "when", "than", "then", "into", "them",
		"more", "some", "could", "should", "there", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	section    Section
	termFreq   map[string]int
	titleTerms map[string]struct{}
}

type index struct {
	cfg     config
	docs    []doc
	docFreq map[string]int
}

// NewIndexFromMarkdown builds an Index by reading the Markdown at path
// and delegating to NewIndexFromReader (in-memory).
func NewIndexFromMarkdown(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return &index{cfg: defaultConfig()}, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader builds an Index from UTF-8 Markdown provided by r.
// The reader is fully consumed; sections split on ## and ### headings.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	all, err := io.ReadAll(r)
	if err != nil {
		return &index{cfg: cfg}, err
	}
	return buildIndex(splitSections(string(all)), cfg), nil
}

// NewIndexFromSections builds an Index directly from pre-split sections.
func NewIndexFromSections(sections []Section, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return buildIndex(sections, cfg)
}

func buildIndex(sections []Section, cfg config) *index {
	idx := &index{cfg: cfg, docFreq: make(map[string]int)}
	for _, s := range sections {
		terms := tokenize(s.Title+" "+s.Body, cfg.stopwords)
		if len(terms) == 0 {
			continue
		}
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		titleTerms := make(map[string]struct{})
		for _, t := range tokenize(s.Title, cfg.stopwords) {
			titleTerms[t] = struct{}{}
		}
		for t := range tf {
			idx.docFreq[t]++
		}
		idx.docs = append(idx.docs, doc{section: s, termFreq: tf, titleTerms: titleTerms})
		if cfg.maxDocs > 0 && len(idx.docs) >= cfg.maxDocs {
			break
		}
	}
	return idx
}

// TopK returns up to k best-matching sections by TF-IDF relevance.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTerms := tokenize(q, i.cfg.stopwords)
	if len(qTerms) == 0 {
		return nil
	}
	qFreq := make(map[string]int, len(qTerms))
	for _, t := range qTerms {
		qFreq[t]++
	}
	nDocs := float64(len(i.docs))

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		score := 0.0
		for term, qCount := range qFreq {
			tf, ok := d.termFreq[term]
			if !ok {
				continue
			}
			df := i.docFreq[term]
			if df < 1 {
				df = 1
			}
			idf := math.Log(nDocs/float64(df)) + 1.0
			wordScore := float64(tf) * idf * float64(qCount)
			// title hits are worth triple
			if _, inTitle := d.titleTerms[term]; inTitle {
				wordScore *= 3.0
			}
			score += wordScore
		}
		if score > 0 {
			buf = append(buf, Result{Section: d.section, Score: score})
		}
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].Section.Title < buf[b].Section.Title
	})

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// ----------------------------------------------------------------------------
// Helpers

var termRE = regexp.MustCompile(`[a-z][a-z0-9]*`)

func tokenize(s string, stop map[string]struct{}) []string {
	words := termRE.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, skip := stop[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

var headingRE = regexp.MustCompile(`(?m)^#{2,3}\s`)

// splitSections cuts the document at every ## or ### heading. Text before
// the first heading is indexed under an empty title.
func splitSections(text string) []Section {
	locs := headingRE.FindAllStringIndex(text, -1)
	var chunks []string
	if len(locs) == 0 {
		chunks = []string{text}
	} else {
		if head := strings.TrimSpace(text[:locs[0][0]]); head != "" {
			chunks = append(chunks, head)
		}
		for n, loc := range locs {
			end := len(text)
			if n+1 < len(locs) {
				end = locs[n+1][0]
			}
			chunks = append(chunks, strings.TrimSpace(text[loc[0]:end]))
		}
	}

	out := make([]Section, 0, len(chunks))
	for _, c := range chunks {
		if c == "" {
			continue
		}
		title, body := c, ""
		if nl := strings.IndexByte(c, '\n'); nl >= 0 {
			title, body = c[:nl], c[nl+1:]
		}
		if strings.HasPrefix(title, "#") {
			title = strings.TrimSpace(strings.TrimLeft(title, "#"))
		} else {
			title, body = "", c
		}
		out = append(out, Section{Title: title, Body: body})
	}
	return out
}

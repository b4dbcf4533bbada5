package search

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------- tiny io.Reader that always errors ----------
type boomReader struct{}

func (boomReader) Read(_ []byte) (int, error) { return 0, errors.New("boom") }

// ---------- helpers ----------
func writeIndexTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return p
}

const sampleDocs = `# TaskFlow Product Docs

## Exporting Boards

You can export any board to CSV or PDF from the board menu.
Exports of large boards may take a few minutes to complete.

## Resetting Your Password

Use the Forgot Password link on the sign-in page to reset your password.
A reset email arrives within a few minutes.

### Two-Factor Authentication

If you lose access to your authenticator app, contact support to verify
your identity and disable two-factor authentication.

## Notification Settings

Notification preferences live under Settings. You can mute individual
boards or pause all notifications.
`

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.maxDocs != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}
	if _, ok := def.stopwords["the"]; !ok {
		t.Fatalf("default stopwords should include 'the'")
	}

	cfg := def
	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'the'): %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["an"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'an'): %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["is"]; ok {
		t.Fatalf("WithStopwords should replace the default list")
	}

	WithMaxDocs(2)(&cfg)
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs failed: %d", cfg.maxDocs)
	}
	WithMaxDocs(-1)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("negative maxDocs should be ignored")
	}
}

// ---------- splitSections ----------
func TestSplitSections(t *testing.T) {
	secs := splitSections(sampleDocs)
	if len(secs) != 5 {
		t.Fatalf("expected 5 sections, got %d: %+v", len(secs), secs)
	}
	// preamble before the first ## carries no title
	if secs[0].Title != "" || !strings.Contains(secs[0].Body, "TaskFlow Product Docs") {
		t.Fatalf("preamble section unexpected: %+v", secs[0])
	}
	if secs[1].Title != "Exporting Boards" {
		t.Fatalf("first heading: %q", secs[1].Title)
	}
	if secs[3].Title != "Two-Factor Authentication" {
		t.Fatalf("### headings must split too: %q", secs[3].Title)
	}
	if !strings.Contains(secs[2].Body, "Forgot Password") {
		t.Fatalf("body not attached to heading: %+v", secs[2])
	}
}

// ---------- construction ----------
func TestNewIndexFromMarkdown(t *testing.T) {
	dir := t.TempDir()
	p := writeIndexTemp(t, dir, "docs.md", sampleDocs)

	idx, err := NewIndexFromMarkdown(p)
	if err != nil {
		t.Fatalf("NewIndexFromMarkdown: %v", err)
	}
	got := idx.TopK("how do I export a board", 1)
	if len(got) != 1 || got[0].Section.Title != "Exporting Boards" {
		t.Fatalf("export query should match the export section: %+v", got)
	}
}

func TestNewIndexFromMarkdown_MissingFile(t *testing.T) {
	_, err := NewIndexFromMarkdown(filepath.Join(t.TempDir(), "nope.md"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	// callers treat a missing knowledge base as optional, so the error must
	// stay distinguishable from a corrupt or unreadable one
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file should report fs.ErrNotExist, got %v", err)
	}
}

func TestNewIndexFromReader_ReadError(t *testing.T) {
	if _, err := NewIndexFromReader(boomReader{}); err == nil {
		t.Fatalf("expected reader error")
	}
}

// ---------- ranking ----------
func TestTopK_TitleBoostWins(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "Password Policy", Body: "Minimum length and rotation rules."},
		{Title: "Account Settings", Body: "Change your password, password hints, password history and password rules here."},
	})
	got := idx.TopK("password", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// four body hits (tf=4) beat one title hit tripled (3)
	if got[0].Section.Title != "Account Settings" {
		t.Fatalf("term frequency should outweigh a single boosted hit here: %+v", got)
	}
}

func TestTopK_StopwordsAndShortTokensIgnored(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "Exporting Boards", Body: "Export to CSV from the board menu."},
	})
	if got := idx.TopK("the a i to", 3); got != nil {
		t.Fatalf("stopword-only query must return nil, got %+v", got)
	}
	if got := idx.TopK("   ", 3); got != nil {
		t.Fatalf("blank query must return nil")
	}
}

func TestTopK_NoMatchReturnsNil(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "Exporting Boards", Body: "Export to CSV from the board menu."},
	})
	if got := idx.TopK("kubernetes clusters", 3); got != nil {
		t.Fatalf("unrelated query must return nil, got %+v", got)
	}
}

func TestTopK_DeterministicTieOrder(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "Zeta Widgets", Body: "widgets"},
		{Title: "Alpha Widgets", Body: "widgets"},
	})
	for i := 0; i < 5; i++ {
		got := idx.TopK("widgets", 2)
		if len(got) != 2 || got[0].Section.Title != "Alpha Widgets" {
			t.Fatalf("ties must break by title, got %+v", got)
		}
	}
}

func TestTopK_CapsAtK(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "One", Body: "sync issues"},
		{Title: "Two", Body: "sync conflicts"},
		{Title: "Three", Body: "sync status"},
	})
	if got := idx.TopK("sync", 2); len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// k<=0 falls back to 3
	if got := idx.TopK("sync", 0); len(got) != 3 {
		t.Fatalf("default k should be 3, got %d", len(got))
	}
}

func TestTopK_RareTermsScoreHigher(t *testing.T) {
	idx := NewIndexFromSections([]Section{
		{Title: "Sync Basics", Body: "sync sync sync common content"},
		{Title: "Offline Mode", Body: "sync offline airplane"},
		{Title: "Board Sharing", Body: "sync sharing links"},
	})
	got := idx.TopK("offline sync", 3)
	if len(got) == 0 || got[0].Section.Title != "Offline Mode" {
		t.Fatalf("rare term should dominate: %+v", got)
	}
}

package corpus

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed data/movies.csv
var dataFS embed.FS

// EmbeddedName is the path of the packaged title list inside the embedded FS
const EmbeddedName = "data/movies.csv"

// fallbackTitles is used when the packaged resource is missing or unusable
var fallbackTitles = []string{
	"The Shawshank Redemption", "The Godfather", "The Dark Knight", "Pulp Fiction",
	"The Lord of the Rings", "Forrest Gump", "Star Wars", "Inception",
	"The Matrix", "Goodfellas", "The Silence of the Lambs", "Saving Private Ryan",
	"Schindler's List", "Terminator 2", "Back to the Future", "Alien",
	"The Lion King", "Gladiator",
}

// Corpus is an immutable ordered list of normalized movie titles
type Corpus struct {
	titles   []string
	fallback bool
}

// New builds a corpus from already normalized titles
func New(titles []string) *Corpus {
	return &Corpus{titles: append([]string(nil), titles...)}
}

// Len returns the number of titles
func (c *Corpus) Len() int {
	return len(c.titles)
}

// At returns the title at position i
func (c *Corpus) At(i int) string {
	return c.titles[i]
}

// Titles returns a copy of the titles in source order
func (c *Corpus) Titles() []string {
	return append([]string(nil), c.titles...)
}

// IsFallback reports whether the built-in list was used
func (c *Corpus) IsFallback() bool {
	return c.fallback
}

// Loader loads the corpus once and caches it for the life of the process
type Loader struct {
	fsys   fs.FS
	name   string
	logger *log.Logger

	once   sync.Once
	corpus *Corpus
}

// NewLoader creates a loader reading name from fsys
func NewLoader(fsys fs.FS, name string, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{fsys: fsys, name: name, logger: logger}
}

// NewEmbeddedLoader creates a loader for the packaged title list
func NewEmbeddedLoader(logger *log.Logger) *Loader {
	return NewLoader(dataFS, EmbeddedName, logger)
}

// NewFileLoader creates a loader for a CSV file on disk
func NewFileLoader(path string, logger *log.Logger) *Loader {
	return NewLoader(os.DirFS(filepath.Dir(path)), filepath.Base(path), logger)
}

// Load returns the corpus, reading the resource on the first call only.
// It never fails: the worst case is the fallback list.
func (l *Loader) Load() *Corpus {
	l.once.Do(func() {
		titles, err := l.read()
		if err != nil {
			l.logger.Printf("Title corpus unavailable, using %d fallback titles: %v", len(fallbackTitles), err)
			l.corpus = &Corpus{titles: append([]string(nil), fallbackTitles...), fallback: true}
			return
		}
		l.logger.Printf("Loaded %d titles from %s", len(titles), l.name)
		l.corpus = &Corpus{titles: titles}
	})
	return l.corpus
}

func (l *Loader) read() ([]string, error) {
	f, err := l.fsys.Open(l.name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.name, err)
	}
	defer f.Close()

	var titles []string
	seen := make(map[string]struct{})
	skipped := 0

	// Lines are read whole so one oversized row cannot end the scan
	r := bufio.NewReader(f)
	lineNo := 0
	for done := false; !done; {
		raw, err := r.ReadString('\n')
		switch {
		case err == io.EOF:
			done = true
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", l.name, err)
		}
		if raw == "" {
			continue
		}
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		title, err := parseRow(line)
		if err != nil {
			skipped++
			l.logger.Printf("Skipping corpus row %d: %v", lineNo, err)
			continue
		}

		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, title)
	}

	if len(titles) == 0 {
		return nil, fmt.Errorf("%s has no usable rows (%d skipped)", l.name, skipped)
	}
	return titles, nil
}

// parseRow turns one data row into a normalized title
func parseRow(line string) (string, error) {
	raw, err := ExtractTitle(line)
	if err != nil {
		return "", err
	}
	title := CleanTitle(raw)
	if len([]rune(title)) <= 1 {
		return "", fmt.Errorf("title %q too short", raw)
	}
	return title, nil
}

package behavior

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// NewsArticle is one row of a MIND news.tsv file. Entity columns are ignored.
type NewsArticle struct {
	ID          string `json:"news_id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ReadNews parses tab-separated news rows. Only the ID column is required;
// trailing columns may be missing.
func ReadNews(r io.Reader) ([]NewsArticle, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var articles []NewsArticle
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Split(line, "\t")
		id := strings.TrimSpace(cols[0])
		if id == "" {
			return nil, lineError(lineNo, errors.ValidationError("empty news_id"))
		}

		articles = append(articles, NewsArticle{
			ID:          id,
			Category:    column(cols, 1),
			Subcategory: column(cols, 2),
			Title:       column(cols, 3),
			Abstract:    column(cols, 4),
			URL:         column(cols, 5),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.IOError("scanning news", err)
	}

	return articles, nil
}

// ReadNewsFile reads news from a TSV file.
func ReadNewsFile(path string) ([]NewsArticle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("news file %s", path))
		}
		return nil, errors.IOError("opening news file", err)
	}
	defer f.Close()

	return ReadNews(f)
}

// Catalog indexes news articles by ID.
type Catalog map[string]NewsArticle

// NewCatalog builds a catalog; later rows win on duplicate IDs.
func NewCatalog(articles []NewsArticle) Catalog {
	c := make(Catalog, len(articles))
	for _, a := range articles {
		c[a.ID] = a
	}
	return c
}

// Contains reports whether id is a known article.
func (c Catalog) Contains(id string) bool {
	_, ok := c[id]
	return ok
}

func column(cols []string, i int) string {
	if i >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[i])
}

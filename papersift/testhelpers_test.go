package papersift

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const zoteroCSV = `Key,Item Type,Publication Year,Author,Title,Publication Title,Abstract Note,Extra
K1,journalArticle,2021,"Smith, John; Doe, Jane",Graph neural networks for molecules,Nature,"We apply graph neural networks to molecular property prediction.",x1
K2,conferencePaper,2019,Alice Walker,Medieval poetry in context,Proc. Poetry,"A study of rhyme in medieval verse.",x2
K3,book,2020,,Deep learning on graphs,,,x3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// countingEmbedder records how many texts reach the provider.
type countingEmbedder struct {
	Embedder
	mu    sync.Mutex
	texts int
	calls int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{Embedder: NewHashEmbedder(64)}
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.texts++
	c.calls++
	c.mu.Unlock()
	return c.Embedder.EmbedText(ctx, text)
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts += len(texts)
	c.calls++
	c.mu.Unlock()
	return c.Embedder.EmbedTexts(ctx, texts)
}

func (c *countingEmbedder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texts
}

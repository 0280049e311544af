package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/extract"
)

var ingestSession string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index documents into the research corpus",
	Long: `Chunk and index local documents into the server's corpus so later
analyses can retrieve them.

Text and markdown files are indexed as-is; PDF text is extracted locally
before upload. Indexed documents are retrievable from every session;
--session only records where they came from.

Examples:
  helix ingest paper.pdf
  helix ingest notes.md results.txt assay.pdf
  helix ingest --session 2f6c1b0a protocol.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSession, "session", "s", "", "session ID to tag documents with")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		chunks, err := vectorizeFile(ctx, args[0], ingestSession)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %s: %d chunks\n", filepath.Base(args[0]), chunks)
		return nil
	}

	return runIngestProgress(args, func(path string) (int, error) {
		return vectorizeFile(ctx, path, ingestSession)
	})
}

// vectorizeFile uploads one file's text for indexing and reports how many
// chunks it produced. PDFs are extracted locally, untruncated, so the full
// document lands in the corpus.
func vectorizeFile(ctx context.Context, path, sessionID string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	name := filepath.Base(path)
	var content string
	switch {
	case strings.EqualFold(filepath.Ext(path), ".pdf"):
		content, err = extract.PDFText(data)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", name, err)
		}
	case strings.HasPrefix(http.DetectContentType(data), "image/"):
		return 0, fmt.Errorf("cannot index image file %s", name)
	default:
		content = strings.ToValidUTF8(string(data), "")
	}

	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("no extractable text in %s", name)
	}

	result, err := api.Vectorize(ctx, name, content, sessionID)
	if err != nil {
		return 0, err
	}
	return result.Chunks, nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/extract"
	"github.com/raphaelgruber/helix-go/internal/models"
)

var (
	askSession  string
	askAttach   []string
	askThinking string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Run one analysis and print the answer",
	Long: `Run a single analysis against the server and print the answer.

Attachments are extracted locally (PDF text, plain text, images) and sent
along with the query. The session ID printed at the end can be reused with
--session so follow-up questions stay grounded in the same memory.

Examples:
  helix ask "What pathways does TP53 regulate?"
  helix ask "Summarize the attached assay notes" -a notes.txt -a assay.pdf
  helix ask "How does that compare to my earlier question?" -s 2f6c1b0a
  helix ask "Chart the expression data" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID to continue")
	askCmd.Flags().StringArrayVarP(&askAttach, "attach", "a", nil, "file to attach (repeatable)")
	askCmd.Flags().StringVar(&askThinking, "thinking", "", "thinking level: none, low, high")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the raw JSON response")
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := models.AnalyzeRequest{
		Query:         args[0],
		SessionID:     askSession,
		ThinkingLevel: askThinking,
	}
	for _, path := range askAttach {
		attachment, err := loadAttachment(path)
		if err != nil {
			return err
		}
		req.Attachments = append(req.Attachments, attachment)
	}

	resp, err := api.Analyze(context.Background(), req)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if askJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if verbose && len(resp.ThinkingTrace) > 0 {
		for _, step := range resp.ThinkingTrace {
			fmt.Printf("· %s\n", step)
		}
		fmt.Println()
	}

	fmt.Println(resp.Result)

	if len(resp.Charts) > 0 {
		fmt.Println()
		for i, chart := range resp.Charts {
			switch {
			case chart.Error != "":
				fmt.Printf("Chart %d: %s (%s) failed: %s\n", i+1, chart.Title, chart.Type, chart.Error)
			case chart.File != "":
				fmt.Printf("Chart %d: %s (%s) -> %s\n", i+1, chart.Title, chart.Type, chart.File)
			default:
				fmt.Printf("Chart %d: %s (%s)\n", i+1, chart.Title, chart.Type)
			}
		}
	}

	fmt.Printf("\nSession: %s\n", resp.SessionID)
	return nil
}

// loadAttachment reads a local file and prepares it the same way an
// uploaded one would be: PDFs become extracted text, unknown types are
// sniffed from the bytes.
func loadAttachment(path string) (models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	return extract.FromUpload(filepath.Base(path), "", data), nil
}

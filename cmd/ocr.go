package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [pdf-file]",
	Short: "Recognize the text of a scanned PDF",
	Long: `Run Google Cloud Vision document text detection on a scanned statement,
invoice or receipt and print the text. Useful to check what the statement and
document parsers will see for a scan without a text layer.

Vision reads at most 5 pages and 20MB per synchronous request.`,
	Example: `  buchhaltung ocr kontoauszug-scan.pdf
  buchhaltung ocr rechnung.pdf --json -o rechnung.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput is the --json form of an OCR run.
type OCROutput struct {
	*ocr.Result
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size_bytes"`
	ProcessedAt time.Time `json:"processed_at"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Print the result with page count and confidence as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr-cli")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]
	fileInfo, err := validateInputFile(pdfPath, log)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pdfPath, err)
	}

	ctx, cancel := commandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	vision, err := ocr.NewGoogleVision(ctx, cfg.Google)
	if err != nil {
		return friendlyError(err, log)
	}
	defer vision.Close()

	log.Info().
		Str("file", pdfPath).
		Int64("size", fileInfo.Size()).
		Msg("Processing PDF")

	result, err := vision.Recognize(ctx, data)
	if err != nil {
		return friendlyError(err, log)
	}

	if jsonOutput {
		return writeJSON(OCROutput{
			Result:      result,
			FileName:    fileInfo.Name(),
			FileSize:    fileInfo.Size(),
			ProcessedAt: time.Now(),
		}, outputPath, log)
	}

	if outputPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(result.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output_file", outputPath).Msg("Text written to file")
	return nil
}

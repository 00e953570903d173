package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/numfmt"
	"buchhaltung/internal/paperless"
)

var paperlessCmd = &cobra.Command{
	Use:   "paperless",
	Short: "Look up documents, tags and correspondents in Paperless-ngx",
}

var paperlessTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List archive tags",
	Args:  cobra.NoArgs,
	RunE:  runPaperlessTags,
}

var paperlessCorrespondentsCmd = &cobra.Command{
	Use:   "correspondents",
	Short: "List archive correspondents",
	Args:  cobra.NoArgs,
	RunE:  runPaperlessCorrespondents,
}

var paperlessSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full text search in the archive",
	Example: `  buchhaltung paperless search Hetzner --after 01.08.2025
  buchhaltung paperless search Rechnung --correspondent 4 --tags 1,2`,
	Args: cobra.ExactArgs(1),
	RunE: runPaperlessSearch,
}

type searchHit struct {
	paperless.Document
	URL string `json:"url"`
}

func init() {
	rootCmd.AddCommand(paperlessCmd)
	paperlessCmd.AddCommand(paperlessTagsCmd, paperlessCorrespondentsCmd, paperlessSearchCmd)

	paperlessCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")

	paperlessSearchCmd.Flags().Int("correspondent", 0, "Only documents of this correspondent id")
	paperlessSearchCmd.Flags().String("tags", "", "Comma separated tag ids that must all be present")
	paperlessSearchCmd.Flags().String("after", "", "Created after this date (DD.MM.YYYY or YYYY-MM-DD)")
	paperlessSearchCmd.Flags().String("before", "", "Created before this date (DD.MM.YYYY or YYYY-MM-DD)")
	paperlessSearchCmd.Flags().Int("page-size", 25, "Maximum documents returned")
}

func archiveClient() (*paperless.Client, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Paperless.Enabled() {
		return nil, friendlyError(paperless.ErrNotConfigured, logger.WithComponent("paperless-cli"))
	}
	return paperless.NewClient(cfg.Paperless), nil
}

func runPaperlessTags(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("paperless-cli")
	outputPath, _ := cmd.Flags().GetString("output")

	client, err := archiveClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(2*time.Minute, log)
	defer cancel()

	tags := client.ListTags(ctx)
	if tags == nil {
		tags = []paperless.Tag{}
	}
	return writeJSON(tags, outputPath, log)
}

func runPaperlessCorrespondents(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("paperless-cli")
	outputPath, _ := cmd.Flags().GetString("output")

	client, err := archiveClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(2*time.Minute, log)
	defer cancel()

	correspondents := client.ListCorrespondents(ctx)
	if correspondents == nil {
		correspondents = []paperless.Correspondent{}
	}
	return writeJSON(correspondents, outputPath, log)
}

func runPaperlessSearch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("paperless-cli")
	outputPath, _ := cmd.Flags().GetString("output")

	filters, err := searchFilters(cmd)
	if err != nil {
		return err
	}

	client, err := archiveClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(2*time.Minute, log)
	defer cancel()

	docs := client.Search(ctx, args[0], filters)
	hits := make([]searchHit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, searchHit{Document: d, URL: client.DocumentURL(d.ID)})
	}
	return writeJSON(hits, outputPath, log)
}

func searchFilters(cmd *cobra.Command) (paperless.SearchFilters, error) {
	var f paperless.SearchFilters

	f.CorrespondentID, _ = cmd.Flags().GetInt("correspondent")
	f.PageSize, _ = cmd.Flags().GetInt("page-size")

	tags, _ := cmd.Flags().GetString("tags")
	for _, raw := range strings.Split(tags, ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid tag id %q", raw)
		}
		f.TagIDs = append(f.TagIDs, id)
	}

	for flag, dst := range map[string]**time.Time{"after": &f.CreatedAfter, "before": &f.CreatedBefore} {
		raw, _ := cmd.Flags().GetString(flag)
		if raw == "" {
			continue
		}
		d, err := numfmt.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid --%s date %q: %w", flag, raw, err)
		}
		*dst = &d
	}

	return f, nil
}

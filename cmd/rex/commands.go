package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buonappetort/rex/internal/config"
	"github.com/buonappetort/rex/internal/dataset"
	"github.com/buonappetort/rex/internal/model"
	"github.com/buonappetort/rex/internal/query"
	"github.com/buonappetort/rex/internal/service"
	"github.com/buonappetort/rex/internal/storage"
)

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recommendation",
	Long: `Add a recommendation to the collection.

Examples:
  rex add --owner alice --title "Dune" --category Book --tags sci-fi,classic
  rex add --owner alice --title "Headphones" --category Gear --url https://www.amazon.com/dp/B0863TXGM3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		url, _ := cmd.Flags().GetString("url")
		tags, _ := cmd.Flags().GetString("tags")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.svc.Create(cmd.Context(), model.Candidate{
			OwnerID:     owner,
			Title:       title,
			Category:    category,
			Description: description,
			MediaURL:    url,
			Tags:        splitList(tags),
		})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), item)
		}
		printSuccess("Added %s", item.ID)
		if item.SourceMeta != nil && !item.SourceMeta.Empty() {
			printStatus("Enriched", "from %s", item.SourceURL)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().String("owner", "", "owner id (required)")
	addCmd.Flags().String("title", "", "item title (required)")
	addCmd.Flags().String("category", "", "item category (required)")
	addCmd.Flags().String("description", "", "free-text description")
	addCmd.Flags().String("url", "", "media or product link")
	addCmd.Flags().String("tags", "", "comma-separated tags")
	addCmd.Flags().Bool("json", false, "print the created item as JSON")
}

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one item as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items ordered by creation time",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		order, _ := cmd.Flags().GetString("order")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.List(cmd.Context(), query.Params{
			OwnerID: owner,
			Order:   query.ParseOrder(order),
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if res.Paginated {
				return printJSON(out, res)
			}
			return printJSON(out, res.Items)
		}
		printItems(out, res.Items)
		if res.Paginated {
			fmt.Fprintf(out, "page %d, %d of %d", res.Page, len(res.Items), res.Total)
			if res.HasMore {
				fmt.Fprint(out, ", more available")
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("owner", "", "only items of this owner")
	listCmd.Flags().String("order", "asc", "asc or desc by creation time")
	listCmd.Flags().Int("page", 0, "1-based page number (needs --limit)")
	listCmd.Flags().Int("limit", 0, "page size (needs --page)")
	listCmd.Flags().Bool("json", false, "print JSON")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Keyword search over the collection",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		noLLM, _ := cmd.Flags().GetBool("no-llm")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Search(cmd.Context(), service.SearchRequest{
			Query:       strings.Join(args, " "),
			OwnerID:     owner,
			UseExternal: !noLLM,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, res)
		}
		printStep("keywords: %s", strings.Join(res.Keywords, ", "))
		printItems(out, res.Results)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("owner", "", "only search items of this owner")
	searchCmd.Flags().Bool("no-llm", false, "split the query on whitespace instead of asking the language model")
	searchCmd.Flags().Bool("json", false, "print JSON")
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed <owner>",
	Short: "Add the starter catalog for an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.Seed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			printWarning("%s already has every starter item", args[0])
			return nil
		}
		printSuccess("Seeded %d items for %s", n, args[0])
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load Amazon review dataset files from the data directory",
	Long: `Load Amazon Reviews 2023 files placed in the data directory.

The unified export (amazon_reviews_2023.jsonl) and the raw parquet shards
(full-*.parquet, e.g. full-00000-of-00002.parquet) are read when present;
without shards, amazon_reviews_2023.parquet_export.jsonl stands in for them.
Only when none of these exist are per-category files named
amazon_reviews_2023_<Category>.jsonl read.

Examples:
  rex ingest
  rex ingest --categories Books,Electronics --limit 50
  rex ingest --all-ratings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, _ := cmd.Flags().GetString("categories")
		limit, _ := cmd.Flags().GetInt("limit")
		allRatings, _ := cmd.Flags().GetBool("all-ratings")
		batch, _ := cmd.Flags().GetBool("batch")

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := dataset.DefaultOptions()
		opts.Categories = splitList(categories)
		opts.Limit = limit
		opts.FiveStarOnly = !allRatings
		opts.Streaming = !batch

		res, err := a.svc.Ingest(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(res.Files) == 0 {
			printWarning("No dataset files found in %s", a.cfg.Storage.DataDir)
		}
		printSuccess("Added %d items (%d total) from %d files", res.Added, res.Total, len(res.Files))
		for _, f := range res.Files {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
		}
		return nil
	},
}

var ingestRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.svc.IngestHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No ingestion runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  +%d (total %d)  %s\n",
				r.ID, r.StartedAt.Format(model.TimeLayout), r.Added, r.Total, r.Files)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("categories", "", "comma-separated categories (default all)")
	ingestCmd.Flags().Int("limit", dataset.DefaultLimit, "maximum kept rows per file")
	ingestCmd.Flags().Bool("all-ratings", false, "keep rows of every rating, not only five-star")
	ingestCmd.Flags().Bool("batch", false, "read each file fully instead of line by line")
	ingestRunsCmd.Flags().Int("limit", 10, "number of runs to show")
	ingestCmd.AddCommand(ingestRunsCmd)
}

// --- backups ---

var backupsCmd = &cobra.Command{
	Use:   "backups [name]",
	Short: "List corrupt-snapshot backups, or print one",
	Long: `List the copies kept when a snapshot failed to decode and was reset.
With a name, print that backup's original bytes.

Examples:
  rex backups
  rex backups backup-1728153191847191000 > recovered.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			data, err := a.backups.GetBackup(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("backup %q not found", args[0])
			}
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}

		list, err := a.backups.ListBackups()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No backups.")
			return nil
		}
		for _, b := range list {
			fmt.Fprintf(out, "%s  %s  %d bytes\n", b.Name, b.CreatedAt.Format(model.TimeLayout), b.Size)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

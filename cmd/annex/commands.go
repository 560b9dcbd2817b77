package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/annex/internal/config"
	"github.com/kalambet/annex/internal/storage"
)

// --- put ---

var putCmd = &cobra.Command{
	Use:   "put <key>",
	Short: "Store a new revision of an annotation dataset",
	Long: `Store a new revision of an annotation dataset under a key.

The annotation records are read as a JSON array from --file or stdin:

  annex put item-42 --file ./annotations.json
  cat annotations.json | annex put item-42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		apiKey, _ := cmd.Flags().GetString("api-key")

		var data []byte
		var err error
		if file != "" {
			data, err = os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
		} else {
			data, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
		}

		var records []storage.Annotation
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("invalid annotation JSON: %w", err)
		}

		client, err := newAPIClient(apiKey)
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/datastore/", map[string]any{
			"key":   args[0],
			"value": records,
		})
		if err != nil {
			return err
		}

		var result struct {
			ID       int64 `json:"id"`
			Revision int   `json:"revision"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored %s revision %d (id %d)", args[0], result.Revision, result.ID)
		return nil
	},
}

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get <store_id>",
	Short: "Fetch a stored annotation dataset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api-key")

		client, err := newAPIClient(apiKey)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/datastore/?store_id="+url.QueryEscape(args[0]))
		if err != nil {
			return err
		}

		var entry any
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list [key]",
	Short: "List stored datasets, for the caller or for a key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api-key")
		revision, _ := cmd.Flags().GetString("revision")

		client, err := newAPIClient(apiKey)
		if err != nil {
			return err
		}

		path := "/datastore/list/"
		if len(args) == 1 {
			path += url.PathEscape(args[0])
		}
		if revision != "" {
			path += "?revision=" + url.QueryEscape(revision)
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var listing struct {
			Revision string `json:"revision"`
			List     []struct {
				ID  int64  `json:"id"`
				Key string `json:"key"`
			} `json:"list"`
		}
		if err := decodeJSON(resp, &listing); err != nil {
			return err
		}

		if len(listing.List) == 0 {
			fmt.Println("No datasets found.")
			return nil
		}

		for _, item := range listing.List {
			if item.Key != "" {
				fmt.Printf("%s  %s\n", colorize(colorCyan, fmt.Sprintf("%6d", item.ID)), item.Key)
			} else {
				fmt.Printf("%s\n", colorize(colorCyan, fmt.Sprintf("%6d", item.ID)))
			}
		}
		return nil
	},
}

// --- segment ---

var segmentCmd = &cobra.Command{
	Use:   "segment <remote_url>",
	Short: "Segment a remote audio document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api-key")

		client, err := newAPIClient(apiKey)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/segment?remote_url="+url.QueryEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			Results []struct {
				Start   float64 `json:"start"`
				End     float64 `json:"end"`
				Speaker string  `json:"speaker"`
			} `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, seg := range result.Results {
			fmt.Printf("%9.3f %9.3f  %s\n", seg.Start, seg.End, colorize(colorBold, seg.Speaker))
		}
		printSuccess("%d segments", len(result.Results))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{putCmd, getCmd, listCmd, segmentCmd} {
		cmd.Flags().String("api-key", "", "annotation platform API key (default: $ANNEX_API_KEY)")
	}
	putCmd.Flags().String("file", "", "file with the annotation JSON array (default: stdin)")
	listCmd.Flags().String("revision", "", "revision to resolve (default: latest)")
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCmd(c *Client) *cobra.Command {
	var documentID string
	var tags, steps []string

	cmd := &cobra.Command{
		Use:   "upload <index> <file>...",
		Short: "Upload one or more files into an index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.Upload(cmd.Context(), args[0], documentID, tags, steps, args[1:])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "reuse an existing document id")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag in key:value form, repeatable")
	cmd.Flags().StringSliceVar(&steps, "step", nil, "override the default ingestion plan, repeatable")
	return cmd
}

func newStatusCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status <index> <documentId>",
		Short: "Read a document's pipeline status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.Status(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newIndexesCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "List indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.Indexes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newDeleteIndexCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-index <index>",
		Short: "Delete an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.DeleteIndex(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("index deletion started")
			return nil
		},
	}
}

func newDeleteDocumentCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-document <index> <documentId>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.DeleteDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("document deletion started")
			return nil
		},
	}
}

func newAskCmd(c *Client) *cobra.Command {
	var minRelevance float64

	cmd := &cobra.Command{
		Use:   "ask <index> <question>",
		Short: "Ask a grounded question against an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.Ask(cmd.Context(), args[0], args[1], minRelevance)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "minimum citation relevance score")
	return cmd
}

func newSearchCmd(c *Client) *cobra.Command {
	var minRelevance float64
	var limit int

	cmd := &cobra.Command{
		Use:   "search <index> [query]",
		Short: "Search an index, optionally by filter only",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			out, err := c.Search(cmd.Context(), args[0], query, minRelevance, limit)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "minimum match relevance score")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of matches")
	return cmd
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

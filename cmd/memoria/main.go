// Command memoria is a thin CLI client over a running memoriad server,
// grounded on the teacher's cli/main.go + cli/rag.go shape (ingest files,
// ask a question, inspect status) but retargeted from an in-process RAG
// pipeline to HTTP calls against memoria's external interface (spec.md
// §6), since cobra replaces the teacher's unpublishable krait helper
// (spec.md §9 DESIGN NOTES).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func newRootCmd() *cobra.Command {
	client := &Client{}

	root := &cobra.Command{
		Use:   "memoria",
		Short: "memoria CLI tool",
		Long:  "A command-line client for the memoria ingestion and retrieval API.",
	}
	root.PersistentFlags().StringVar(&client.BaseURL, "server", envOr("MEMORIA_SERVER", "http://localhost:8080"), "memoriad server base URL")
	root.PersistentFlags().StringVar(&client.AccessKeyHeader, "access-key-header", os.Getenv("MEMORIA_ACCESS_KEY_HEADER"), "access key header name, if auth is enabled")
	root.PersistentFlags().StringVar(&client.AccessKey, "access-key", os.Getenv("MEMORIA_ACCESS_KEY"), "access key value, if auth is enabled")

	root.AddCommand(
		newUploadCmd(client),
		newStatusCmd(client),
		newIndexesCmd(client),
		newDeleteIndexCmd(client),
		newDeleteDocumentCmd(client),
		newAskCmd(client),
		newSearchCmd(client),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over message bodies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Search")
		if err != nil {
			return err
		}
		defer a.Close()

		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = a.DefaultSearchLimit()
		}

		messages, err := a.Search(ctx, args[0], topic, limit)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		renderMessageTable(os.Stdout, messages)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("topic", "", "Restrict results to one topic")
	searchCmd.Flags().IntP("limit", "n", 0, "Maximum number of results (default: config search limit)")
	rootCmd.AddCommand(searchCmd)
}

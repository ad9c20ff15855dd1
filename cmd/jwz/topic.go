package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topics",
}

var topicCreateCmd = &cobra.Command{
	Use:   "create NAME [DESCRIPTION]",
	Short: "Create a topic",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "CreateTopic")
		if err != nil {
			return err
		}
		defer a.Close()

		description := ""
		if len(args) > 1 {
			description = args[1]
		}

		id, err := a.CreateTopic(ctx, args[0], description)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	topicCmd.AddCommand(topicCreateCmd)
	rootCmd.AddCommand(topicCmd)
}

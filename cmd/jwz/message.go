package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Fetch a message by id or prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Show(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:      %s\n", m.ID)
		fmt.Printf("Topic:   %s\n", m.TopicID)
		if m.ParentID != "" {
			fmt.Printf("Parent:  %s\n", m.ParentID)
		}
		fmt.Printf("Sender:  %s\n", senderLabel(m.Sender))
		fmt.Printf("Posted:  %s (%s)\n", m.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(m.CreatedAt))
		fmt.Printf("Replies: %d\n", m.ReplyCount)
		if m.Git != nil {
			dirty := ""
			if m.Git.Dirty {
				dirty = " (dirty)"
			}
			fmt.Printf("Git:     %s@%s%s\n", m.Git.CommitOID, m.Git.Head, dirty)
		}
		fmt.Printf("\n%s\n", m.Body)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list TOPIC",
	Short: "List a topic's root messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = a.DefaultSearchLimit()
		}

		messages, err := a.List(ctx, args[0], limit)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		renderMessageTable(os.Stdout, messages)
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread ID",
	Short: "Show a message and all its replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Thread")
		if err != nil {
			return err
		}
		defer a.Close()

		messages, err := a.Thread(ctx, args[0])
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No messages.")
			return nil
		}

		if isTerminal(os.Stdout) {
			renderThreadTree(os.Stdout, messages, messages[0].ID)
		} else {
			renderMessageTable(os.Stdout, messages)
		}
		return nil
	},
}

var repliesCmd = &cobra.Command{
	Use:   "replies ID",
	Short: "Show a message's immediate replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Replies")
		if err != nil {
			return err
		}
		defer a.Close()

		messages, err := a.Replies(ctx, args[0])
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No replies.")
			return nil
		}
		renderMessageTable(os.Stdout, messages)
		return nil
	},
}

func init() {
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of messages to show (default: config search limit)")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(repliesCmd)
}

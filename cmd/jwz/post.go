package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	petname "github.com/dustinkirkland/golang-petname"

	"jwz/internal/store"
)

var postCmd = &cobra.Command{
	Use:   "post TOPIC BODY",
	Short: "Post a message, optionally as a reply",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Post")
		if err != nil {
			return err
		}
		defer a.Close()

		parentID, _ := cmd.Flags().GetString("parent")
		senderName, _ := cmd.Flags().GetString("sender")
		model, _ := cmd.Flags().GetString("model")
		role, _ := cmd.Flags().GetString("role")

		if senderName == "" {
			senderName = petname.Generate(2, "-")
		}
		sender := &store.Sender{
			Identity: uuid.New().String(),
			Name:     senderName,
			Model:    model,
			Role:     role,
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		git, err := captureVersionContext(ctx, cwd)
		if err != nil {
			return fmt.Errorf("capturing version context: %w", err)
		}

		id, err := a.Post(ctx, args[0], parentID, args[1], sender, git)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	postCmd.Flags().String("parent", "", "Parent message id or prefix to reply to")
	postCmd.Flags().String("sender", "", "Sender display name (default: a generated petname)")
	postCmd.Flags().String("model", "", "Model name, if posted by an automated sender")
	postCmd.Flags().String("role", "", "Sender role")
	rootCmd.AddCommand(postCmd)
}

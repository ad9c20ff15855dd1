package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Manage content-addressed blob attachments",
}

var blobPutCmd = &cobra.Command{
	Use:   "put FILE",
	Short: "Store a file's contents as a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "PutBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		mimeType, _ := cmd.Flags().GetString("mime")
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
		}

		id, err := a.PutBlob(ctx, data, mimeType)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

var blobGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Write a blob's contents to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "GetBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.GetBlob(ctx, args[0])
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(out, data, 0o644)
	},
}

var blobShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a blob's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "FetchBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.FetchBlob(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:      %s\n", b.ID)
		fmt.Printf("Size:    %s\n", humanize.Bytes(uint64(b.Size)))
		fmt.Printf("MIME:    %s\n", b.MIMEType)
		fmt.Printf("Stored:  %s (%s)\n", b.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(b.CreatedAt))
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach MESSAGE_ID BLOB_ID",
	Short: "Attach a blob to a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "AttachBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		name, _ := cmd.Flags().GetString("name")
		if err := a.AttachBlob(ctx, args[0], args[1], name); err != nil {
			return err
		}

		fmt.Println("attached")
		return nil
	},
}

func init() {
	blobPutCmd.Flags().String("mime", "", "MIME type override (default: guessed from file extension)")
	blobGetCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	attachCmd.Flags().String("name", "", "Display name for the attachment")

	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobShowCmd)
	rootCmd.AddCommand(blobCmd)
	rootCmd.AddCommand(attachCmd)
}

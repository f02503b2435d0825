package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/media"
	"github.com/funpik/adminconsole/pkg/session"
)

var (
	mediaFolder      string
	mediaContentType string
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage images in the media bucket",
}

var mediaListCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List images, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMediaList,
}

var mediaUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an image and print its public URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaUpload,
}

var mediaDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an image by key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaDelete,
}

func init() {
	mediaUploadCmd.Flags().StringVar(&mediaFolder, "folder", media.DefaultFolder, "Destination folder")
	mediaUploadCmd.Flags().StringVar(&mediaContentType, "content-type", "", "Content type (detected from the extension when omitted)")

	mediaCmd.AddCommand(mediaListCmd, mediaUploadCmd, mediaDeleteCmd)
	rootCmd.AddCommand(mediaCmd)
}

// openBucket requires an authenticated session before touching the bucket.
func openBucket(cmd *cobra.Command) (*media.Bucket, func(), error) {
	app, _, err := openApp(cmd, session.Options{})
	if err != nil {
		return nil, nil, err
	}
	closeApp := func() { _ = app.Close() }

	if _, err := requireSession(cmd.Context(), app); err != nil {
		closeApp()
		return nil, nil, err
	}
	bucket, err := app.Media()
	if err != nil {
		closeApp()
		return nil, nil, err
	}
	return bucket, closeApp, nil
}

func runMediaList(cmd *cobra.Command, args []string) error {
	folder := media.DefaultFolder
	if len(args) == 1 {
		folder = args[0]
	}

	bucket, done, err := openBucket(cmd)
	if err != nil {
		return err
	}
	defer done()

	images, err := bucket.List(cmd.Context(), folder)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No images in %s\n", folder)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED\tURL")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", img.Key, img.Size, img.LastModified.Format("2006-01-02 15:04"), img.URL)
	}
	return w.Flush()
}

func runMediaUpload(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	bucket, done, err := openBucket(cmd)
	if err != nil {
		return err
	}
	defer done()

	url, err := bucket.Upload(cmd.Context(), mediaFolder, filepath.Base(args[0]), f, mediaContentType)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Uploaded %s\n", url)
	return nil
}

func runMediaDelete(cmd *cobra.Command, args []string) error {
	bucket, done, err := openBucket(cmd)
	if err != nil {
		return err
	}
	defer done()

	if err := bucket.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smallnest/taskwire/client"
)

var (
	streamPath string
	streamData string
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Open a streaming call",
	Long: `Open a streaming call against the backend and print each data frame
as it arrives. Ctrl-C aborts the stream silently.`,
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVar(&streamPath, "path", "", "Stream path (required)")
	streamCmd.Flags().StringVar(&streamData, "data", "", "JSON request body")
	_ = streamCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var body any
	if streamData != "" {
		if err := json.Unmarshal([]byte(streamData), &body); err != nil {
			return fmt.Errorf("--data is not valid JSON: %w", err)
		}
	}

	err = c.Stream(ctx, http.MethodPost, streamPath, body, client.StreamHandler{
		OnMessage: func(payload json.RawMessage) {
			fmt.Println(string(payload))
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "stream failed: %v\n", err)
		},
		OnComplete: func(taskID, conversationID, messageID string) {
			fmt.Fprintf(os.Stderr, "done task=%s conversation=%s message=%s\n",
				taskID, conversationID, messageID)
		},
	})
	if ctx.Err() != nil {
		// Aborted by the user; the silent-abort contract applies.
		return nil
	}
	return err
}

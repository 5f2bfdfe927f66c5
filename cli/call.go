package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	callMethod  string
	callPath    string
	callData    string
	callTimeout int
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Issue a plain request",
	Long:  `Issue a single request against the backend and print the JSON response.`,
	RunE:  runCall,
}

func init() {
	callCmd.Flags().StringVar(&callMethod, "method", "GET", "HTTP method (GET, POST, PUT, DELETE)")
	callCmd.Flags().StringVar(&callPath, "path", "", "Request path (required)")
	callCmd.Flags().StringVar(&callData, "data", "", "JSON request body")
	callCmd.Flags().IntVar(&callTimeout, "timeout", 120, "Overall timeout in seconds")
	_ = callCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	c, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(callTimeout)*time.Second)
	defer cancel()

	var body any
	if callData != "" {
		if err := json.Unmarshal([]byte(callData), &body); err != nil {
			return fmt.Errorf("--data is not valid JSON: %w", err)
		}
	}

	var out json.RawMessage
	method := strings.ToUpper(callMethod)
	switch method {
	case http.MethodGet:
		err = c.Get(ctx, callPath, &out)
	case http.MethodPost:
		err = c.Post(ctx, callPath, body, &out)
	case http.MethodPut:
		err = c.Put(ctx, callPath, body, &out)
	case http.MethodDelete:
		err = c.Delete(ctx, callPath, &out)
	default:
		return fmt.Errorf("unsupported method %q", callMethod)
	}
	if err != nil {
		return err
	}

	pretty, err := json.MarshalIndent(json.RawMessage(out), "", "  ")
	if err != nil {
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(string(pretty))
	return nil
}

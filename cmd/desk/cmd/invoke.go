package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/invoker"
)

var (
	invokeNoRetry bool
	invokeTimeout time.Duration
)

// invokeCmd calls one backend command
var invokeCmd = &cobra.Command{
	Use:   "invoke <command> [json-args]",
	Short: "Call one backend command",
	Long: `Calls a backend command through the invoker and prints the payload.
Trading mutations are never retried.

Examples:
  go run ./cmd/desk invoke get_positions
  go run ./cmd/desk invoke cancel_order '{"order_id":"240105000001"}'
  go run ./cmd/desk invoke get_market_data --timeout 2s --no-retry`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().BoolVar(&invokeNoRetry, "no-retry", false, "disable retry")
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 0, "per-attempt timeout (default: INVOKE_TIMEOUT_MS)")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	name := args[0]

	var callArgs any
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("args must be JSON: %s", args[1])
		}
		callArgs = json.RawMessage(args[1])
	}

	inv, err := newInvoker(cfg)
	if err != nil {
		return err
	}

	opts := []invoker.CallOption{invoker.Retryable(!invokeNoRetry && !command.IsMutation(name))}
	if invokeTimeout > 0 {
		opts = append(opts, invoker.Timeout(invokeTimeout))
	}

	body, err := inv.Call(context.Background(), name, callArgs, opts...)
	if err != nil {
		var cmdErr *command.CommandError
		if errors.As(err, &cmdErr) {
			return fmt.Errorf("%s failed (%s): %s", name, cmdErr.Kind, cmdErr.Message)
		}
		return err
	}

	var pretty bytes.Buffer
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(body)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgmtapi/mgmtapi-go/pkg/mgmtapi"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

type responseOutput struct {
	Success    bool             `json:"success"`
	StatusCode int              `json:"status_code"`
	Code       string           `json:"code,omitempty"`
	Data       types.Document   `json:"data"`
	Warnings   []types.Document `json:"warnings,omitempty"`
	Errors     []types.Document `json:"errors,omitempty"`
}

// printResponse writes resp and returns ErrAlreadyHandled for a failed call, so
// the process exits non-zero without printing the failure twice.
func printResponse(cmd *cobra.Command, resp *mgmtapi.Response) error {
	w, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if jsonOutput {
		if err := printJSON(w, responseOutput{
			Success:    resp.Success,
			StatusCode: resp.StatusCode,
			Code:       resp.Code,
			Data:       resp.Data,
			Warnings:   resp.Warnings,
			Errors:     resp.Errors,
		}); err != nil {
			return err
		}
		if !resp.Success {
			return ErrAlreadyHandled
		}
		return nil
	}

	if !resp.Success {
		code := firstNonEmpty(resp.ServerCode(), resp.Code)
		errorLabel.Fprintf(errw, "✗ %s", resp.ErrorMessage)
		if code != "" {
			fmt.Fprintf(errw, " (%s)", code)
		}
		fmt.Fprintln(errw)
		printMessages(errw, resp.Errors)
		return ErrAlreadyHandled
	}
	printMessages(errw, resp.Warnings)
	return printJSON(w, resp.Data)
}

func printMessages(w io.Writer, docs []types.Document) {
	for _, d := range docs {
		msg, err := d.GetString("message")
		if err != nil || msg.IsEmpty() {
			fmt.Fprintf(w, "  - %s\n", d.String())
			continue
		}
		fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(msg.String()))
	}
}

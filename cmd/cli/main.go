package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iho/goexpense/internal/adapter/http/dto"
)

type options struct {
	baseURL string
	token   string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "goexpense-cli",
		Short:         "GoExpense CLI tool",
		Long:          `A command line interface for interacting with the GoExpense API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the GoExpense API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GOEXPENSE_TOKEN"), "Bearer token (defaults to $GOEXPENSE_TOKEN)")

	rootCmd.AddCommand(
		registerCmd(opts),
		loginCmd(opts),
		recordsCmd(opts),
		healthCmd(opts),
	)

	return rootCmd
}

func registerCmd(opts *options) *cobra.Command {
	var req dto.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var user dto.UserResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/auth/register", req, &user, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")

	return cmd
}

func loginCmd(opts *options) *cobra.Command {
	var req dto.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.LoginResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/auth/login", req, &resp, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")

	return cmd
}

func recordsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Expense record operations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.RecordListResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/records", nil, &resp, nil); err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), resp.Records)
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %s\n", resp.Total)
			return nil
		},
	}

	groupedCmd := &cobra.Command{
		Use:   "grouped",
		Short: "Show records grouped by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.GroupedViewResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/records/grouped", nil, &resp, nil); err != nil {
				return err
			}
			printGrouped(cmd.OutOrStdout(), &resp)
			return nil
		},
	}

	var add dto.AddRecordRequest
	var value string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record dated today",
		RunE: func(cmd *cobra.Command, args []string) error {
			add.Value = dto.NumberText(value)
			headers := map[string]string{"Idempotency-Key": uuid.NewString()}

			var rec dto.RecordResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/records", add, &rec, headers); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s %s\n", rec.ID, rec.Description, rec.Value)
			return nil
		},
	}
	addCmd.Flags().StringVar(&add.Description, "description", "", "What the money was spent on")
	addCmd.Flags().StringVar(&value, "value", "", "Amount spent")

	var draft dto.DraftRequest
	var draftValue string
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a record's description and value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts)
			ctx := cmd.Context()

			var current dto.EditSessionResponse
			if err := c.do(ctx, http.MethodPost, "/api/v1/records/"+args[0]+"/edit", nil, &current, nil); err != nil {
				return err
			}

			draft.Value = dto.NumberText(current.Value)
			if !cmd.Flags().Changed("description") {
				draft.Description = current.Description
			}
			if cmd.Flags().Changed("value") {
				draft.Value = dto.NumberText(draftValue)
			}

			if err := c.do(ctx, http.MethodPut, "/api/v1/edit", draft, nil, nil); err != nil {
				return err
			}

			var rec dto.RecordResponse
			if err := c.do(ctx, http.MethodPost, "/api/v1/edit/commit", nil, &rec, nil); err != nil {
				// Leave no draft behind on the server.
				_ = c.do(ctx, http.MethodDelete, "/api/v1/edit", nil, nil, nil)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s %s\n", rec.ID, rec.Description, rec.Value)
			return nil
		},
	}
	editCmd.Flags().StringVar(&draft.Description, "description", "", "New description")
	editCmd.Flags().StringVar(&draftValue, "value", "", "New amount")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(opts).do(cmd.Context(), http.MethodDelete, "/api/v1/records/"+args[0], nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, groupedCmd, addCmd, editCmd, deleteCmd)
	return cmd
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/ready", nil, &result, nil); err != nil {
				return fmt.Errorf("health check FAILED: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", result["status"])
			return nil
		},
	}
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(opts *options) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		token:   opts.token,
		http:    &http.Client{Timeout: opts.timeout},
	}
}

// do sends body as JSON and decodes a 2xx response into out. Other statuses
// are returned as errors carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func responseError(status int, body []byte) error {
	var e dto.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}

	msg := e.Error
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	return fmt.Errorf("status %d: %s", status, msg)
}

func printRecords(w io.Writer, records []*dto.RecordResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tVALUE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Date, truncate(r.Description, 40), r.Value)
	}
	tw.Flush()
}

func printGrouped(w io.Writer, view *dto.GroupedViewResponse) {
	for _, g := range view.Groups {
		fmt.Fprintf(w, "%s  (%s)\n", g.DateLabel, g.Subtotal)
		for _, r := range g.Records {
			fmt.Fprintf(w, "  %-40s %10s\n", truncate(r.Description, 40), r.Value)
		}
	}
	fmt.Fprintf(w, "Total: %s (%d records)\n", view.Total, view.Count)
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}

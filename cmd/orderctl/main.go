// Command orderctl drives the order assembler from a terminal: send a chat
// message, confirm a draft, list or clear orders.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-chat-orderflow/internal/app"
	"github.com/imrishuroy/go-chat-orderflow/internal/assembly"
	"github.com/imrishuroy/go-chat-orderflow/internal/config"
	"github.com/imrishuroy/go-chat-orderflow/internal/logging"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// newApp is replaced in tests to inject a fake oracle.
var newApp = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, nil)
}

type cli struct {
	configFile string
	verbose    bool
	logger     *zap.Logger
	app        *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Assemble bakery orders from chat messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(c.configFile)
			if err != nil {
				return err
			}
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			if c.logger, err = logging.New(level); err != nil {
				return err
			}
			c.app, err = newApp(cmd.Context(), cfg, c.logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(c.processCmd(), c.confirmCmd(), c.listCmd(), c.clearCmd())
	return root
}

func (c *cli) processCmd() *cobra.Command {
	var (
		orderID int64
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "process <message>",
		Short: "Send one customer message to the assembler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *int64
			if cmd.Flags().Changed("order-id") {
				id = &orderID
			}
			res, err := c.app.Assembler.Process(cmd.Context(), strings.Join(args, " "), id)
			if err != nil {
				res = assembly.ErrorResult(err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
				return err
			}
			if res.OrderID != 0 {
				fmt.Fprintf(out, "order #%d (%s)\n", res.OrderID, res.Type)
			}
			fmt.Fprintln(out, res.Message)
			return err
		},
	}
	cmd.Flags().Int64Var(&orderID, "order-id", 0, "continue an existing draft")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result")
	return cmd
}

func (c *cli) confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <order-id>",
		Short: "Commit a complete draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			rec, err := c.app.Assembler.Confirm(cmd.Context(), id)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), assembly.ErrorResult(err).Message)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), assembly.ConfirmedMessage(rec))
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts, or confirmed orders with --confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := c.app.Assembler.Drafts
			if confirmed {
				load = c.app.Assembler.ConfirmedOrders
			}
			recs, err := load(cmd.Context())
			if err != nil {
				return err
			}
			return renderOrders(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "list confirmed orders")
	return cmd
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every draft (confirmed orders are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Assembler.ClearDrafts(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All orders cleared")
			return nil
		},
	}
}

func renderOrders(w io.Writer, recs []orders.OrderRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Status", "Customer", "Phone", "Address", "Delivery", "Items")
	for _, r := range recs {
		items := make([]string, len(r.Items))
		for i, it := range r.Items {
			items[i] = fmt.Sprintf("%d x %s", it.Quantity, it.Name)
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			string(r.Status),
			r.CustomerName,
			r.Phone,
			r.Address,
			r.DeliveryTime,
			strings.Join(items, ", "),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gebeya-market/gebeya-backend/pkg/client"
)

var (
	ordersRole   string
	ordersStatus string
	ordersPage   int
	ordersLimit  int
	ordersReason string
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List and move orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders as buyer or farmer",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		api, err := s.api()
		if err != nil {
			return err
		}
		list, err := api.ListOrders(cmd.Context(), client.ListOrdersParams{
			Role:   ordersRole,
			Status: ordersStatus,
			Page:   ordersPage,
			Limit:  ordersLimit,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printOrders(out, list.Orders)
		fmt.Fprintf(out, "page %d, %d total\n", list.Meta.Page, list.Meta.Total)
		return nil
	},
}

// gebeyactl orders transition <orderId> <status>
var ordersTransitionCmd = &cobra.Command{
	Use:   "transition <orderId> <status>",
	Short: "Move an order to confirmed, shipped, completed or cancelled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id: %w", err)
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		api, err := s.api()
		if err != nil {
			return err
		}
		order, err := api.TransitionOrder(cmd.Context(), id, args[1], optional(ordersReason), uuid.NewString())
		if err != nil {
			return err
		}
		printOrders(cmd.OutOrStdout(), []client.Order{*order})
		return nil
	},
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <orderId>",
	Short: "Cancel an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid order id: %w", err)
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		api, err := s.api()
		if err != nil {
			return err
		}
		order, err := api.CancelOrder(cmd.Context(), id, optional(ordersReason), uuid.NewString())
		if err != nil {
			return err
		}
		printOrders(cmd.OutOrStdout(), []client.Order{*order})
		return nil
	},
}

func init() {
	ordersListCmd.Flags().StringVar(&ordersRole, "role", "buyer", "perspective: buyer or farmer")
	ordersListCmd.Flags().StringVar(&ordersStatus, "status", "", "filter by status")
	ordersListCmd.Flags().IntVar(&ordersPage, "page", 1, "page number")
	ordersListCmd.Flags().IntVar(&ordersLimit, "limit", 0, "page size")
	ordersTransitionCmd.Flags().StringVar(&ordersReason, "reason", "", "reason recorded with the transition")
	ordersCancelCmd.Flags().StringVar(&ordersReason, "reason", "", "cancellation reason")

	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersTransitionCmd)
	ordersCmd.AddCommand(ordersCancelCmd)
}

func printOrders(w io.Writer, orders []client.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "no orders")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tITEMS\tSUBTOTAL\tNEXT")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s %s\t%v\n", o.ID, o.Status, len(o.Items), o.Subtotal.StringFixed(2), o.Currency, o.AllowedNext)
	}
	_ = tw.Flush()
}

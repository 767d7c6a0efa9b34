package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gebeya-market/gebeya-backend/pkg/cart"
	"github.com/gebeya-market/gebeya-backend/pkg/client"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manage the local cart of the current identity",
}

// gebeyactl cart add <listingId> [qty]
var cartAddCmd = &cobra.Command{
	Use:   "add <listingId> [qty]",
	Short: "Add a listing, merging with an existing line",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		listingID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid listing id: %w", err)
		}
		qty := 1
		if len(args) == 2 {
			if qty, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid quantity: %w", err)
			}
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		api, err := s.api()
		if err != nil {
			return err
		}
		listing, err := api.GetListing(cmd.Context(), listingID)
		if err != nil {
			return err
		}
		if err := s.cart.AddItem(itemFromListing(listing, s.prefs.Language()), qty); err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), s.cart.Snapshot())
		return nil
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set <listingId> <qty>",
	Short: "Set a line's quantity; zero removes it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		listingID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid listing id: %w", err)
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity: %w", err)
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		s.cart.UpdateQuantity(listingID, qty)
		printCart(cmd.OutOrStdout(), s.cart.Snapshot())
		return nil
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <listingId>",
	Short: "Remove a line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listingID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid listing id: %w", err)
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		s.cart.RemoveItem(listingID)
		printCart(cmd.OutOrStdout(), s.cart.Snapshot())
		return nil
	},
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), s.cart.Snapshot())
		return nil
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		s.cart.Clear()
		printCart(cmd.OutOrStdout(), s.cart.Snapshot())
		return nil
	},
}

var (
	checkoutAddress string
	checkoutCity    string
	checkoutPhone   string
	checkoutNotes   string
	checkoutPayment string
)

// gebeyactl checkout --address "Bole, Addis Ababa"
var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Submit the cart; it is cleared only after the server accepts it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		if s.token == "" {
			return fmt.Errorf("log in before checking out")
		}
		api, err := s.api()
		if err != nil {
			return err
		}

		var result *client.CheckoutResult
		key := uuid.NewString()
		err = s.cart.Checkout(cmd.Context(), func(ctx context.Context, items []cart.Item) error {
			req := client.CheckoutRequest{
				DeliveryAddress: checkoutAddress,
				DeliveryCity:    optional(checkoutCity),
				ContactPhone:    optional(checkoutPhone),
				Notes:           optional(checkoutNotes),
				PaymentMethod:   checkoutPayment,
			}
			for _, it := range items {
				req.Items = append(req.Items, client.CheckoutLine{ListingID: it.ListingID, Quantity: it.Quantity})
			}
			var err error
			result, err = api.Checkout(ctx, req, key)
			return err
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "checkout %s created %d order(s)\n", result.CheckoutGroupID, len(result.Orders))
		printOrders(out, result.Orders)
		return nil
	},
}

func init() {
	cartCmd.AddCommand(cartAddCmd)
	cartCmd.AddCommand(cartSetCmd)
	cartCmd.AddCommand(cartRemoveCmd)
	cartCmd.AddCommand(cartListCmd)
	cartCmd.AddCommand(cartClearCmd)

	checkoutCmd.Flags().StringVar(&checkoutAddress, "address", "", "delivery address")
	checkoutCmd.Flags().StringVar(&checkoutCity, "city", "", "delivery city")
	checkoutCmd.Flags().StringVar(&checkoutPhone, "phone", "", "contact phone (09XXXXXXXX or +2519XXXXXXXX)")
	checkoutCmd.Flags().StringVar(&checkoutNotes, "notes", "", "notes for the farmer")
	checkoutCmd.Flags().StringVar(&checkoutPayment, "payment", "cash_on_delivery", "payment method")
	_ = checkoutCmd.MarkFlagRequired("address")
}

func itemFromListing(l *client.Listing, lang string) cart.Item {
	item := cart.Item{
		ListingID:         l.ID,
		Name:              l.Name,
		ImageRefs:         l.ImageRefs,
		PricePerUnit:      l.PricePerUnit,
		AvailableQuantity: l.AvailableQuantity,
	}
	if lang == client.LanguageAmharic && l.NameAm != nil {
		item.NameLocalized = *l.NameAm
	}
	return item
}

func printCart(w io.Writer, snap cart.Snapshot) {
	if len(snap.Items) == 0 {
		fmt.Fprintf(w, "cart (%s) is empty\n", snap.Identity)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LISTING\tNAME\tQTY\tUNIT PRICE\tLINE TOTAL")
	for _, it := range snap.Items {
		name := it.Name
		if it.NameLocalized != "" {
			name = it.NameLocalized
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", it.ListingID, name, it.Quantity, it.PricePerUnit.StringFixed(2), it.LineTotal().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d item(s), total %s ETB\n", snap.TotalItems, snap.TotalCost.StringFixed(2))
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

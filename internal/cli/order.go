package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewOrderCmd создаёт группу команд для работы с заказами доски.
func NewOrderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage dashboard orders",
	}

	cmd.AddCommand(
		newOrderListCmd(clientFn, outputFn),
		newOrderShowCmd(clientFn, outputFn),
		newOrderRefreshCmd(clientFn, outputFn),
		newOrderDriverStatusCmd(clientFn, outputFn),
		newOrderAssignCmd(clientFn, outputFn),
		newOrderUpdateCmd(clientFn, outputFn),
		newOrderCloseCmd(clientFn, outputFn),
		newOrderCancelCmd(clientFn, outputFn),
	)

	return cmd
}

var orderHeaders = []string{"ID", "STATUS", "KITCHEN", "DRIVER_STATUS", "DRIVER", "TOTAL", "ITEMS"}

func orderRow(o OrderResponse) []string {
	driver := o.DriverName
	if driver == "" && o.DriverID != nil {
		driver = strconv.FormatInt(*o.DriverID, 10)
	}

	items := "-"
	switch {
	case o.RelevantItems == nil:
	case o.KitchenExcludedOnly:
		items = fmt.Sprintf("%d (excluded)", len(o.Items))
	default:
		items = strconv.Itoa(*o.RelevantItems)
	}

	return []string{
		strconv.FormatInt(o.ID, 10),
		o.Status,
		o.KitchenStatus,
		o.DriverStatus,
		driver,
		o.Total,
		items,
	}
}

func newOrderListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var kitchenStatus string
	var driverStatus string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders on the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ListOrders(ListOrdersOpts{
				KitchenStatus: kitchenStatus,
				DriverStatus:  driverStatus,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(resp.Data))
			for i, o := range resp.Data {
				rows[i] = orderRow(o)
			}

			out.Print(orderHeaders, rows, resp)
			if resp.Error != "" {
				out.Warn("last fetch cycle failed: " + resp.Error)
			}
			if resp.Stale {
				out.Warn("showing a stored snapshot, waiting for the first fetch cycle")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kitchenStatus, "kitchen-status", "", "Filter by kitchen status (new, preparing, ready, delivered)")
	cmd.Flags().StringVar(&driverStatus, "driver-status", "", "Filter by driver status (on_road, delivered)")

	return cmd
}

func newOrderShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}

			client := clientFn()
			out := outputFn()

			order, err := client.GetOrder(id)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(order)
				return nil
			}

			out.Table(orderHeaders, [][]string{orderRow(*order)})
			fmt.Fprintln(out.w)

			headers := []string{"ITEM", "NAME", "CATEGORY", "QTY", "KITCHEN", "EXCLUDED"}
			rows := make([][]string, len(order.Items))
			for i, item := range order.Items {
				key := item.UniqueID
				if key == "" {
					key = item.ID
				}
				rows[i] = []string{
					key,
					item.Name,
					item.Category,
					strconv.Itoa(item.Quantity),
					item.KitchenStatus,
					strconv.FormatBool(item.KitchenExcluded),
				}
			}
			out.Table(headers, rows)
			return nil
		},
	}
}

func newOrderRefreshCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Schedule an immediate fetch cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().RefreshOrders(); err != nil {
				return err
			}
			outputFn().Success("Refresh scheduled")
			return nil
		},
	}
}

func newOrderDriverStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "driver-status ID STATUS",
		Short: "Set delivery status (on_road, picked_up, delivered)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}

			order, err := clientFn().SetDriverStatus(id, args[1])
			if err != nil {
				return err
			}

			printOrderResult(outputFn(), id, order, "Driver status updated")
			return nil
		},
	}
}

func newOrderAssignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var driverName string

	cmd := &cobra.Command{
		Use:   "assign ID DRIVER_ID",
		Short: "Assign a driver to the order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			driverID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || driverID <= 0 {
				return fmt.Errorf("invalid driver id %q", args[1])
			}

			order, err := clientFn().AssignDriver(id, driverID, driverName)
			if err != nil {
				return err
			}

			printOrderResult(outputFn(), id, order, "Driver assigned")
			return nil
		},
	}

	cmd.Flags().StringVar(&driverName, "name", "", "Driver name shown on the dashboard")

	return cmd
}

func newOrderUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var total, paymentMethod, receiptID string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update total, payment method or receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}

			var req UpdateOrderRequest
			if cmd.Flags().Changed("total") {
				req.Total = &total
			}
			if cmd.Flags().Changed("payment-method") {
				req.PaymentMethod = &paymentMethod
			}
			if cmd.Flags().Changed("receipt") {
				req.ReceiptID = &receiptID
			}
			if req.Total == nil && req.PaymentMethod == nil && req.ReceiptID == nil {
				return fmt.Errorf("nothing to update: set --total, --payment-method or --receipt")
			}

			order, err := clientFn().UpdateOrder(id, req)
			if err != nil {
				return err
			}

			printOrderResult(outputFn(), id, order, "Order updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&total, "total", "", "New order total")
	cmd.Flags().StringVar(&paymentMethod, "payment-method", "", "New payment method")
	cmd.Flags().StringVar(&receiptID, "receipt", "", "Receipt number")

	return cmd
}

func newOrderCloseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "close ID",
		Short: "Close the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}

			if err := clientFn().CloseOrder(id); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Order closed: %d", id))
			return nil
		},
	}
}

func newOrderCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}

			if err := clientFn().CancelOrder(id); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Order cancelled: %d", id))
			return nil
		},
	}
}

// printOrderResult выводит заказ после действия. nil — заказ уже ушёл с доски.
func printOrderResult(out *Output, id int64, order *OrderResponse, msg string) {
	out.Success(fmt.Sprintf("%s: %d", msg, id))
	if order == nil {
		return
	}
	out.Print(orderHeaders, [][]string{orderRow(*order)}, order)
}

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}

package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewReportCmd создаёт группу команд для отчётов по водителям.
func NewReportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build and inspect driver reports",
	}

	cmd.AddCommand(
		newReportShowCmd(clientFn, outputFn),
		newReportBuildCmd(clientFn, outputFn),
		newReportArchiveCmd(clientFn, outputFn),
		newReportArchiveShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newReportShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current driver report",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := clientFn().GetDriverReport()
			if err != nil {
				return err
			}

			printReportState(outputFn(), state)
			return nil
		},
	}
}

func newReportBuildCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var from, to string
	var driverIDs []int64
	var wait bool
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a driver report for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if from == "" {
				from = time.Now().Format(time.DateOnly)
			}

			state, err := client.BuildDriverReport(BuildReportRequest{
				DriverIDs: driverIDs,
				From:      from,
				To:        to,
			})
			if err != nil {
				return err
			}

			if !wait {
				out.Success("Report build started")
				return nil
			}

			for state.Loading {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(pollInterval):
				}

				state, err = client.GetDriverReport()
				if err != nil {
					return err
				}
			}

			printReportState(out, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (default: --from)")
	cmd.Flags().Int64SliceVar(&driverIDs, "driver", nil, "Driver ID (repeatable; default: all drivers)")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the report and print it")
	cmd.Flags().DurationVar(&pollInterval, "poll", 500*time.Millisecond, "Polling interval while waiting")

	return cmd
}

func newReportArchiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List stored reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := clientFn().ListArchivedReports(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "FROM", "TO", "PACKETS", "SALES", "FAILED", "GENERATED"}
			rows := make([][]string, len(reports))
			for i, r := range reports {
				rows[i] = []string{
					r.ID,
					r.From,
					r.To,
					strconv.Itoa(r.PacketsDelivered),
					r.TotalSales,
					fmt.Sprintf("%d/%d", r.FailedTasks, r.Tasks),
					r.GeneratedAt,
				}
			}

			outputFn().Print(headers, rows, reports)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newReportArchiveShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "archive-show ID",
		Short: "Show a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := clientFn().GetArchivedReport(args[0])
			if err != nil {
				return err
			}

			printReportState(outputFn(), &ReportStateResponse{Report: rep})
			return nil
		},
	}
}

// printReportState выводит сводку отчёта и его заказы.
func printReportState(out *Output, state *ReportStateResponse) {
	if out.jsonMode {
		out.JSON(state)
		return
	}

	if state.Loading {
		out.Success("Report is being built...")
	}
	if state.Error != "" {
		out.Error(state.Error)
	}

	rep := state.Report
	if rep == nil {
		return
	}

	methods := make([]string, 0, len(rep.SalesByMethod))
	for m := range rep.SalesByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	byMethod := make([]string, len(methods))
	for i, m := range methods {
		byMethod[i] = m + "=" + rep.SalesByMethod[m]
	}

	out.Table(
		[]string{"FROM", "TO", "PACKETS", "SALES", "BY_METHOD", "FAILED"},
		[][]string{{
			rep.From,
			rep.To,
			strconv.Itoa(rep.PacketsDelivered),
			rep.TotalSales,
			strings.Join(byMethod, " "),
			fmt.Sprintf("%d/%d", rep.FailedTasks, rep.Tasks),
		}},
	)

	if len(rep.Orders) > 0 {
		fmt.Fprintln(out.w)
		rows := make([][]string, len(rep.Orders))
		for i, o := range rep.Orders {
			driver := o.DriverName
			if driver == "" {
				driver = strconv.FormatInt(o.DriverID, 10)
			}
			rows[i] = []string{strconv.FormatInt(o.ID, 10), driver, o.Total, o.PaymentMethod, o.DeliveredAt}
		}
		out.Table([]string{"ORDER", "DRIVER", "TOTAL", "METHOD", "DELIVERED"}, rows)
	}
}

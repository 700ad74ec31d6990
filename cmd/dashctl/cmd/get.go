package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jrsteele09/dashboard-session/apiclient"
	"github.com/spf13/cobra"
)

// lister is what get needs from an apiclient.Resource, whatever its element type.
type lister struct {
	list func(ctx context.Context, q url.Values) (any, error)
	get  func(ctx context.Context, id int64) (any, error)
}

func resourceOf[T any](r *apiclient.Resource[T]) lister {
	return lister{
		list: func(ctx context.Context, q url.Values) (any, error) { return r.List(ctx, q) },
		get:  func(ctx context.Context, id int64) (any, error) { return r.Get(ctx, id) },
	}
}

func resources(c *apiclient.Client) map[string]lister {
	return map[string]lister{
		"shops":          resourceOf(c.Shops),
		"customers":      resourceOf(c.Customers),
		"packages":       resourceOf(c.Packages),
		"refills":        resourceOf(c.Refills),
		"sales":          resourceOf(c.Sales),
		"credits":        resourceOf(c.Credits),
		"expenses":       resourceOf(c.Expenses),
		"meter-readings": resourceOf(c.MeterReadings),
		"stock-items":    resourceOf(c.StockItems),
		"stock-logs":     resourceOf(c.StockLogs),
		"users":          resourceOf(c.Users),
	}
}

var getQuery map[string]string

var getCmd = &cobra.Command{
	Use:   "get <resource> [id]",
	Short: "Fetch a resource collection or a single item as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.service.Wait()

		r, ok := resources(a.api)[args[0]]
		if !ok {
			return fmt.Errorf("unknown resource %q (one of %s)", args[0], strings.Join(resourceNames(a.api), ", "))
		}
		if _, err := a.service.Resume(cmd.Context()); err != nil {
			return err
		}

		var out any
		if len(args) == 2 {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[1], err)
			}
			out, err = r.get(cmd.Context(), id)
			if err != nil {
				return err
			}
		} else {
			q := url.Values{}
			for k, v := range getQuery {
				q.Set(k, v)
			}
			if out, err = r.list(cmd.Context(), q); err != nil {
				return err
			}
		}
		return printJSON(out)
	},
}

var (
	analyticsTimeRange string
	analyticsShop      int64
)

var analyticsCmd = &cobra.Command{
	Use:       "analytics <sales|customers|inventory|financial>",
	Short:     "Fetch an analytics report as JSON",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sales", "customers", "inventory", "financial"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.service.Wait()

		reports := map[string]func(context.Context, apiclient.AnalyticsQuery) (apiclient.Report, error){
			"sales":     a.api.Analytics.Sales,
			"customers": a.api.Analytics.Customers,
			"inventory": a.api.Analytics.Inventory,
			"financial": a.api.Analytics.Financial,
		}
		report, ok := reports[args[0]]
		if !ok {
			return fmt.Errorf("unknown report %q", args[0])
		}
		if _, err := a.service.Resume(cmd.Context()); err != nil {
			return err
		}

		out, err := report(cmd.Context(), apiclient.AnalyticsQuery{TimeRange: analyticsTimeRange, ShopID: analyticsShop})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func resourceNames(c *apiclient.Client) []string {
	var names []string
	for name := range resources(c) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	getCmd.Flags().StringToStringVarP(&getQuery, "query", "q", nil, "query parameters, e.g. -q shop=4")
	analyticsCmd.Flags().StringVar(&analyticsTimeRange, "time-range", "", "report period, e.g. week, month, year")
	analyticsCmd.Flags().Int64Var(&analyticsShop, "shop", 0, "restrict to one shop")

	rootCmd.AddCommand(getCmd, analyticsCmd)
}

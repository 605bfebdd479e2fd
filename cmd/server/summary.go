package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"salarydash/internal/config"
	"salarydash/internal/engine"
	"salarydash/internal/logging"
	"salarydash/internal/models"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the dashboard for a filter selection",
	Long:  "Loads the dataset, applies the filter flags and prints the KPIs and chart projections. A dimension flag that is not given selects every value.",
	RunE:  runSummary,
}

var (
	summaryData          string
	summaryYears         []string
	summarySeniority     []string
	summaryContractTypes []string
	summaryCompanySizes  []string
	summaryRole          string
	summaryTop           int
	summaryBins          int
	summaryFormat        string
)

// dimensionFlags maps each filter dimension to its flag name.
var dimensionFlags = map[engine.Dimension]string{
	engine.DimYear:        "year",
	engine.DimSeniority:   "seniority",
	engine.DimContract:    "contract-type",
	engine.DimCompanySize: "company-size",
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryData, "data", "d", "", "Dataset URL or local CSV path (default: configured source)")
	summaryCmd.Flags().StringSliceVar(&summaryYears, "year", nil, "Years to include (comma-separated or repeated)")
	summaryCmd.Flags().StringSliceVar(&summarySeniority, "seniority", nil, "Seniority levels to include")
	summaryCmd.Flags().StringSliceVar(&summaryContractTypes, "contract-type", nil, "Contract types to include")
	summaryCmd.Flags().StringSliceVar(&summaryCompanySizes, "company-size", nil, "Company sizes to include")
	summaryCmd.Flags().StringVar(&summaryRole, "role", "", "Role the country means are restricted to")
	summaryCmd.Flags().IntVar(&summaryTop, "top", engine.DefaultTopN, "Number of roles in the ranking")
	summaryCmd.Flags().IntVar(&summaryBins, "bins", engine.DefaultHistogramBins, "Histogram bins")
	summaryCmd.Flags().StringVarP(&summaryFormat, "format", "f", "text", "Output format: text or json")

	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	if summaryFormat != "text" && summaryFormat != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", summaryFormat)
	}
	if summaryTop <= 0 || summaryBins <= 0 {
		return fmt.Errorf("--top and --bins must be positive")
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if summaryData != "" {
		cfg.DataSource = summaryData
	}
	if summaryRole != "" {
		cfg.FocusRole = summaryRole
	}
	cfg.TopN, cfg.HistogramBins = summaryTop, summaryBins
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Progress goes to stderr so JSON output stays clean.
	logger := logging.New("summary", "warn", os.Stderr)
	store, err := engine.Load(cmd.Context(), cfg.DataSource, &engine.FetchOptions{Timeout: cfg.FetchTimeout()}, logger)
	if err != nil {
		return err
	}

	chosen := make(map[engine.Dimension][]string)
	values := map[engine.Dimension][]string{
		engine.DimYear:        summaryYears,
		engine.DimSeniority:   summarySeniority,
		engine.DimContract:    summaryContractTypes,
		engine.DimCompanySize: summaryCompanySizes,
	}
	for dim, name := range dimensionFlags {
		if cmd.Flags().Changed(name) {
			chosen[dim] = values[dim]
		}
	}

	sel, err := buildSelection(store, chosen)
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), engine.Aggregate(engine.Filter(store, sel), cfg.Params()), summaryFormat)
}

// buildSelection starts from every value in store and narrows the
// dimensions present in chosen.
func buildSelection(store *engine.ColumnStore, chosen map[engine.Dimension][]string) (engine.Selection, error) {
	sel := engine.DefaultSelection(store)
	for _, dim := range engine.Dimensions {
		values, ok := chosen[dim]
		if !ok {
			continue
		}
		if dim == engine.DimYear {
			for _, v := range values {
				if _, err := strconv.Atoi(v); err != nil {
					return sel, fmt.Errorf("invalid year %q", v)
				}
			}
		}
		sel.Set(dim, values...)
	}
	return sel, nil
}

func printSummary(w io.Writer, data *models.DashboardData, format string) error {
	if format == "json" {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	p := message.NewPrinter(language.English)
	k := data.KPIs
	if k.Empty {
		p.Fprintln(w, "No data for the selected filters.")
		return nil
	}

	p.Fprintf(w, "Mean salary:      $%.0f\n", k.MeanSalary)
	p.Fprintf(w, "Max salary:       $%.0f\n", k.MaxSalary)
	p.Fprintf(w, "Records:          %d\n", k.Count)
	p.Fprintf(w, "Most common role: %s\n", k.TopRole)

	p.Fprintf(w, "\nTop %d roles by mean salary\n", len(data.TopRoles))
	for i := len(data.TopRoles) - 1; i >= 0; i-- {
		r := data.TopRoles[i]
		p.Fprintf(w, "  %-40s $%.0f\n", r.Role, r.Mean)
	}

	p.Fprintln(w, "\nWork arrangement")
	for _, rc := range data.RemoteModes {
		p.Fprintf(w, "  %-12s %6d  %5.1f%%\n", rc.Mode, rc.Count, float64(rc.Count)/float64(k.Count)*100)
	}

	p.Fprintf(w, "\nMean %s salary by country\n", data.FocusRole)
	if len(data.CountryMeans) == 0 {
		p.Fprintln(w, "  no data")
		return nil
	}
	codes := make([]string, 0, len(data.CountryMeans))
	for c := range data.CountryMeans {
		codes = append(codes, c)
	}
	slices.SortFunc(codes, func(a, b string) int {
		ma, mb := data.CountryMeans[a], data.CountryMeans[b]
		switch {
		case ma > mb:
			return -1
		case ma < mb:
			return 1
		}
		return cmp.Compare(a, b)
	})
	for _, c := range codes {
		p.Fprintf(w, "  %s  $%.0f\n", c, data.CountryMeans[c])
	}
	return nil
}

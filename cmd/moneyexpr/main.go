package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/moneyexpr"
)

var (
	configFile string
	markdown   bool
	noColor    bool
	verbose    bool
	jobs       int
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "moneyexpr [flags] [query...]",
	Short: "Currency calculator",
	Long: `Moneyexpr evaluates currency calculator queries like "1kkc + 10k$" or
"(2+7)USD*2 + 2/2EUR +GBP" and prints the result in each target currency.

With no arguments, each line of standard input is a query.`,
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "configuration file (YAML, default built-in)")
	rootCmd.Flags().BoolVar(&markdown, "markdown", false, "print errors as Markdown code blocks")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log debug information to stderr")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "queries to evaluate concurrently")
}

func run(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg := moneyexpr.DefaultConfig()
	if configFile != "" {
		c, err := moneyexpr.LoadConfigFile(configFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	rates, err := moneyexpr.RatesFromConfig(cfg)
	if err != nil {
		return err
	}
	qp, err := moneyexpr.NewQueryParser(cfg, rates, moneyexpr.WithLogger(log))
	if err != nil {
		return err
	}

	queries := args
	if len(queries) == 0 {
		queries, err = readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]string, len(queries))
	failed := make([]bool, len(queries))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(jobs, 1))
	for i, q := range queries {
		grp.Go(func() error {
			r, err := qp.Parse(ctx, q)
			if err != nil {
				ie, ok := moneyexpr.AsInputError(err)
				if !ok {
					return err
				}
				out[i], failed[i] = renderError(ie), true
				return nil
			}
			s, err := renderQuery(ctx, rates, r)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	nfail := 0
	for i, s := range out {
		fmt.Fprintln(w, s)
		if failed[i] {
			nfail++
		}
	}
	if nfail != 0 {
		return fmt.Errorf("%d of %d queries failed", nfail, len(queries))
	}
	return nil
}

// readLines reads the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			lines = append(lines, s)
		}
	}
	return lines, sc.Err()
}

func renderQuery(ctx context.Context, rates *moneyexpr.RateTable, r *moneyexpr.InputQuery) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s %s\n", color.CyanString(r.Expression), r.ExpressionResult.StringFixedBank(2), r.BaseCurrency)
	for _, t := range r.Targets {
		v, err := rates.Convert(ctx, r.ExpressionResult, r.BaseCurrency, t)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			fmt.Fprintf(&b, "  %s %s\n", color.YellowString("?"), t)
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", color.GreenString(v.StringFixedBank(2)), t)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func renderError(ie *moneyexpr.InputError) string {
	if markdown {
		return ie.Markdown()
	}
	return color.RedString(ie.Render())
}

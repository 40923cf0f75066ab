// Package cli implements the formula command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/config"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/loader"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/server"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/webfetch"
)

// Version is set at build time via ldflags.
var Version = "dev"

type app struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
	stderr     io.Writer
}

// NewRootCommand builds the formula command tree. Log output goes to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}

	root := &cobra.Command{
		Use:           "formula",
		Short:         "Evaluate spreadsheet formulas and recalculate workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML config file (default $FORMULA_CONFIG)")

	root.AddCommand(
		newEvalCmd(a),
		newRecalcCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errors.CodeInvalidInput) || errors.Is(err, errors.CodeParse) {
			return 2
		}
		return 1
	}
	return 0
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.SetLevel(level)
	log.SetOutput(a.stderr)
	a.cfg = cfg
	a.logger = logging.New().With("run", uuid.NewString())
	return nil
}

func (a *app) workbookOptions() []formula.WorkbookOption {
	evalOpts := []formula.Option{formula.WithLogger(a.logger)}
	opts := []formula.WorkbookOption{formula.WithWorkbookLogger(a.logger)}
	if web := a.cfg.Web; web.Enabled {
		evalOpts = append(evalOpts,
			formula.WithWebFunctions(true),
			formula.WithMaxURLLength(web.MaxURLLength),
			formula.WithMaxResponseBytes(web.MaxResponseBytes),
		)
		opts = append(opts, formula.WithHTTPFetcher(webfetch.New(webfetch.Options{
			Timeout:          web.Timeout.Duration,
			MaxConcurrent:    web.MaxConcurrent,
			MaxResponseBytes: web.MaxResponseBytes,
			Logger:           a.logger,
		})))
	}
	return append(opts, formula.WithEvaluatorOptions(evalOpts...))
}

func (a *app) loadWorkbook(path string) (*formula.Workbook, error) {
	if path == "" {
		wb := formula.NewWorkbook(a.workbookOptions()...)
		if err := wb.AddSheet(a.cfg.Eval.DefaultSheet); err != nil {
			return nil, err
		}
		return wb, nil
	}
	wb, err := loader.Load(path, a.workbookOptions()...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	a.logger.Debugf(context.Background(), "loaded %s with sheets %v", path, wb.Sheets())
	return wb, nil
}

func newEvalCmd(a *app) *cobra.Command {
	var workbook, sheet, cell string

	cmd := &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Evaluate one formula",
		Long: `Evaluate a formula, optionally against a loaded workbook.

With --cell the formula is written into that cell and calculated there,
so ROW() and COLUMN() see its position.

Examples:
  formula eval "=1+2"
  formula eval --workbook book.xlsx --sheet Data "=SUM(A1:A10)"
  formula eval --cell B3 "=ROW()*2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.loadWorkbook(workbook)
			if err != nil {
				return err
			}
			if sheet == "" {
				sheet = a.cfg.Eval.DefaultSheet
				if names := wb.Sheets(); workbook != "" && len(names) > 0 {
					sheet = names[0]
				}
			}
			ctx := cmd.Context()
			if err := wb.Calculate(ctx); err != nil {
				return err
			}

			var v formula.CellValue
			if cell != "" {
				v, err = evalInCell(ctx, wb, sheet, cell, args[0])
			} else {
				v, err = wb.EvaluateFormula(ctx, sheet, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&workbook, "workbook", "", "Workbook file (.xlsx or .json)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet that unqualified references resolve against")
	cmd.Flags().StringVar(&cell, "cell", "", "Cell to evaluate the formula in")
	return cmd
}

func evalInCell(ctx context.Context, wb *formula.Workbook, sheet, cell, text string) (formula.CellValue, error) {
	ref, ok := formula.ResolveCell(sheet, cell)
	if !ok {
		return formula.CellValue{}, errors.InvalidInput("invalid cell %q", cell)
	}
	v := formula.FormulaValue(nil, text, nil)
	if err := wb.SetValue(ref.Sheet, ref.Row, ref.Col, v); err != nil {
		return formula.CellValue{}, err
	}
	if err := wb.Calculate(ctx); err != nil {
		return formula.CellValue{}, err
	}
	return wb.Get(ref.String())
}

func newRecalcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc FILE",
		Short: "Recalculate every formula in a workbook",
		Long: `Load a workbook, calculate every formula and print one line per formula
cell in the form "Sheet!A1 = value".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.loadWorkbook(args[0])
			if err != nil {
				return err
			}
			if err := wb.Calculate(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ref := range wb.FormulaCells() {
				v, err := wb.Get(ref.String())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = %s\n", ref, v)
			}
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Addr:           addr,
				DefaultSheet:   a.cfg.Eval.DefaultSheet,
				Logger:         a.logger,
				WorkbookOption: a.workbookOptions(),
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "formula version %s (%d functions)\n", Version, len(formula.SupportedFunctions()))
		},
	}
}

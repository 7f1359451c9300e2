package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/ingest"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
)

// newCLIApp creates the CLI application. open is called lazily by each
// command so that --help works without a database.
func newCLIApp(open opener, out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "cryotrace",
		Usage:   "Query and maintain cryogenic shipment records",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json-logs", Usage: "Write logs to stderr as JSON"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log at info level"},
		},
		Commands: []*cli.Command{
			askCmd(open, out),
			shipmentsCmd(open, out),
			reindexCmd(open, out),
			loadCmd("load-manifests", "Insert manifests from a CSV export", open, out, backend.LoadManifests),
			loadCmd("load-events", "Record pickup and dropoff weighings from a CSV export", open, out, backend.LoadEvents),
			exportCmd(open, out),
			dbhealthCmd(open, out),
		},
		Writer: out,
	}
	// return errors to the caller instead of exiting, for tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func shipperFlag() cli.Flag {
	return &cli.StringFlag{Name: "shipper", Aliases: []string{"s"}, Usage: "Shipper id", Required: true}
}

func askCmd(open opener, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question about a shipper's shipments",
		ArgsUsage: "<question>",
		Flags:     []cli.Flag{shipperFlag()},
		Action: func(c *cli.Context) error {
			question := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(question) == "" {
				return outputError(common.InvalidInputError("a question is required"))
			}
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			ans, err := b.Ask(c.Context, ask.Request{ShipperID: c.String("shipper"), Question: question})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, struct {
				Answer    string            `json:"answer"`
				Cutoff    *time.Time        `json:"cutoff,omitempty"`
				Direction string            `json:"direction"`
				Shipments []entity.Shipment `json:"shipments"`
			}{ans.Answer, ans.Cutoff, ans.Direction.String(), ans.Shipments})
		},
	}
}

func shipmentsCmd(open opener, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "shipments",
		Usage: "List a shipper's shipments, optionally narrowed by a question's date cutoff",
		Flags: []cli.Flag{
			shipperFlag(),
			&cli.StringFlag{Name: "q", Usage: "Question or phrase carrying a cutoff, e.g. \"after May 4\""},
			&cli.BoolFlag{Name: "context", Usage: "Print the prompt context text instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			res, err := b.Shipments(c.Context, ask.Request{ShipperID: c.String("shipper"), Question: c.String("q")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("context") {
				_, err := fmt.Fprintln(out, res.Report.Text)
				return err
			}
			return outputJSON(out, res.Report.Shipments)
		},
	}
}

func reindexCmd(open opener, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the vector index from the database",
		Action: func(c *cli.Context) error {
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			n, err := b.Reindex(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string]int{"indexed": n})
		},
	}
}

func loadCmd(name, usage string, open opener, out io.Writer, load func(backend, context.Context, string) (ingest.LoadStats, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<csv>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(common.InvalidInputError("exactly one CSV path is required"))
			}
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			stats, err := load(b, c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(out, statsView(stats)); err != nil {
				return err
			}
			if stats.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d rows failed", stats.Failed), 1)
			}
			return nil
		},
	}
}

func exportCmd(open opener, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write shipments to an XLSX workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "shipper", Aliases: []string{"s"}, Usage: "Shipper id (default all)"},
			&cli.StringFlag{Name: "from", Usage: "First pickup date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "Last pickup date, YYYY-MM-DD"},
			&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Value: "shipments.xlsx", Usage: "Output file"},
		},
		Action: func(c *cli.Context) error {
			filter := export.Filter{ShipperID: c.String("shipper")}
			var err error
			if filter.From, err = parseDate(c.String("from")); err != nil {
				return outputError(err)
			}
			if filter.To, err = parseDate(c.String("to")); err != nil {
				return outputError(err)
			}
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			data, err := b.Export(c.Context, filter)
			if err != nil {
				return outputError(err)
			}
			path := c.Path("out")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string]any{"path": path, "bytes": len(data)})
		},
	}
}

func dbhealthCmd(open opener, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "dbhealth",
		Usage: "Check database connectivity",
		Action: func(c *cli.Context) error {
			b, err := open(c)
			if err != nil {
				return outputError(err)
			}
			defer b.Close()

			if err := b.Health(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string]string{"database": "ok"})
		},
	}
}

type loadStatsView struct {
	Rows    int      `json:"rows"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

func statsView(s ingest.LoadStats) loadStatsView {
	v := loadStatsView{Rows: s.Rows, Created: s.Created, Skipped: s.Skipped, Failed: s.Failed}
	for _, err := range s.Errors {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, common.InvalidInputErrorf("%q is not a YYYY-MM-DD date", s)
	}
	return &t, nil
}

func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the terminal with its application code.
func outputError(err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

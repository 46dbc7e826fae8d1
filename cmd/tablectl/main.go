// Command tablectl manages tablemap tables on DynamoDB.
//
// Usage:
//
//	tablectl [-config file] create-table
//	tablectl [-config file] delete-table
//	tablectl [-config file] inspect [-partition p] [-row r]
//	tablectl [-config file] purge [-partition p] -yes
//
// Settings come from the YAML config file and TABLEMAP_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nisimpson/tablemap"
	"github.com/nisimpson/tablemap/ddbtable"
	"github.com/nisimpson/tablemap/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tablectl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tablectl", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: create-table, delete-table, inspect or purge")
	}

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := cfg.NewDynamoDBClient(ctx)
	if err != nil {
		return err
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "create-table":
		logger.Info("creating table", zap.String("table", cfg.Table.Name))
		return ddbtable.CreateTable(ctx, client, cfg.Table.Name)
	case "delete-table":
		logger.Info("deleting table", zap.String("table", cfg.Table.Name))
		return ddbtable.DeleteTable(ctx, client, cfg.Table.Name)
	}

	table := ddbtable.New(client, cfg.Table.Name, func(o *ddbtable.Options) {
		o.Logger = logger
	})

	switch cmd {
	case "inspect":
		filter, err := parseFilterFlags("inspect", cmdArgs, nil)
		if err != nil {
			return err
		}
		return inspect(ctx, table, filter, cfg.Query.PageSize, out)
	case "purge":
		var yes bool
		filter, err := parseFilterFlags("purge", cmdArgs, func(fs *flag.FlagSet) {
			fs.BoolVar(&yes, "yes", false, "confirm deletion")
		})
		if err != nil {
			return err
		}
		if !yes {
			return errors.New("purge deletes rows; pass -yes to confirm")
		}

		reg := prometheus.NewRegistry()
		var metrics *tablemap.Metrics
		if cfg.Metrics.Enabled {
			if metrics, err = tablemap.NewMetrics(cfg.Metrics.Namespace, reg); err != nil {
				return err
			}
		}

		n, err := purge(ctx, table, filter, cfg.Query, logger, metrics)
		fmt.Fprintf(out, "deleted %d rows\n", n)
		logMetrics(logger, reg)
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseFilterFlags(name string, args []string, extra func(*flag.FlagSet)) (tablemap.TableFilter, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	partition := fs.String("partition", "", "partition key to select")
	row := fs.String("row", "", "row key to select; requires -partition")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return tablemap.TableFilter{}, err
	}

	switch {
	case *partition == "" && *row != "":
		return tablemap.TableFilter{}, errors.New("-row requires -partition")
	case *partition == "":
		return tablemap.TableFilter{}, nil
	case *row == "":
		return tablemap.PartitionFilter(*partition), nil
	default:
		return tablemap.KeyFilter(*partition, *row), nil
	}
}

// inspect prints one line per matching row: key, column count, overflowed fields
// and approximate size.
func inspect(ctx context.Context, client tablemap.TableClient, filter tablemap.TableFilter, pageSize int, out io.Writer) error {
	expr, _ := filter.Render()
	token := ""
	for {
		page, err := client.QueryRows(ctx, expr, pageSize, token)
		if err != nil {
			return err
		}
		for _, row := range page.Rows {
			fmt.Fprintf(out, "%s\tcolumns=%d\toverflow=%s\tsize=%d\n",
				row.Key(), len(row.Columns), overflowFields(row), row.Size())
		}
		if page.ContinuationToken == "" {
			return nil
		}
		token = page.ContinuationToken
	}
}

func overflowFields(row *tablemap.Row) string {
	v, ok := row.Get(tablemap.ExpandedColumnsName)
	if !ok {
		return "-"
	}
	text, ok := v.Text()
	if !ok {
		return "?"
	}

	var expanded map[string]int
	if err := (tablemap.JSONCodec{}).Unmarshal(text, &expanded); err != nil {
		return "?"
	}
	fields := make([]string, 0, len(expanded))
	for name, n := range expanded {
		fields = append(fields, fmt.Sprintf("%s:%d", name, n))
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}

// purge deletes every row matching filter, one transaction group per partition
// and page, and returns the number of rows deleted.
func purge(ctx context.Context, client tablemap.TableClient, filter tablemap.TableFilter, q config.QueryConfig, logger *zap.Logger, metrics *tablemap.Metrics) (int, error) {
	deleted := 0
	err := tablemap.IterateRows(ctx, client, filter, q.PageSize,
		func(row *tablemap.Row) tablemap.TransactionAction {
			return tablemap.TransactionAction{Type: tablemap.ActionDelete, Row: row}
		},
		func(ctx context.Context, partition string, actions []tablemap.TransactionAction) error {
			_, err := tablemap.SubmitTransactionsBatched(ctx, client, actions, func(o *tablemap.BatchOptions) {
				o.Size = q.BatchSize
				o.Logger = logger
				o.Metrics = metrics
			})
			if err != nil {
				return fmt.Errorf("failed to purge partition %s: %w", partition, err)
			}
			deleted += len(actions)
			logger.Info("purged partition", zap.String("partition", partition), zap.Int("rows", len(actions)))
			return nil
		},
	)
	return deleted, err
}

func logMetrics(logger *zap.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		logger.Info("metric", zap.String("name", mf.GetName()), zap.Float64("total", total))
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	"github.com/noah-isme/inbox-manager-api/internal/service"
)

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var output string
	rootCmd := &cobra.Command{
		Use:           "inboxctl",
		Short:         "Inspect moderation queues of the inbox manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("--output must be table or json, got %q", output)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(newQueuesCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newWatchCmd())
	return rootCmd
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newQueuesCmd() *cobra.Command {
	var queuesFile string
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "List the queue catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := service.LoadQueueCatalog(queuesFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputFormat(cmd) == "json" {
				return printJSON(out, catalog.List())
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tWINDOW\tACTIONS")
			for _, def := range catalog.List() {
				window := "-"
				if def.TimeWindow {
					window = def.DefaultRange
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.Title, window, strings.Join(def.Actions, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&queuesFile, "queues-file", os.Getenv("QUEUES_FILE"), "YAML file with extra or overriding queues")
	return cmd
}

func newParseCmd() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Parse a filter expression and show the compiled SQL",
		Example: `  inboxctl parse 'and(permission.eq.Waiting,removed.eq.false),and(permission.eq.Objection,Objection_nai.is.true)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			predicate, err := query.ParseExpression(args[0])
			if err != nil {
				return err
			}
			compiled := query.Compile(models.Expression(predicate), nil, time.Now())
			builder, err := query.ToSelect(table, compiled)
			if err != nil {
				return err
			}
			sql, sqlArgs, err := builder.ToSql()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputFormat(cmd) == "json" {
				return printJSON(out, map[string]interface{}{
					"predicate": predicate,
					"sql":       sql,
					"args":      sqlArgs,
				})
			}
			fmt.Fprintln(out, sql)
			for i, arg := range sqlArgs {
				fmt.Fprintf(out, "  $%d = %v\n", i+1, arg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "inbox", "table name used in the rendered SQL")
	return cmd
}

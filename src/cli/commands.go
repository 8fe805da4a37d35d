package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src"
	"github.com/Blackdeer1524/pgcatalog/src/app"
	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

const defaultDataDir = "./data/pg_statistic_ext_data"

type options struct {
	fs      afero.Fs
	dataDir string
	verbose bool
}

func (o *options) logger() src.Logger {
	if o.verbose {
		return app.NewLogger(app.EnvDev)
	}

	return zap.NewNop().Sugar()
}

func (o *options) openStore() (*statextdata.Manager, error) {
	if err := statextdata.InitStore(o.dataDir, o.fs); err != nil {
		return nil, err
	}

	return statextdata.New(o.dataDir, o.fs, o.logger())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// NewRootCmd builds the pgcatalog command tree working on fs.
func NewRootCmd(fs afero.Fs) *cobra.Command {
	opts := &options{fs: fs}

	root := &cobra.Command{
		Use:           "pgcatalog",
		Short:         "Inspect and serve pg_statistic_ext_data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDataDir, "statistics store directory")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable development logging")

	root.AddCommand(
		newDescribeCmd(),
		newAttnumCmd(),
		newInitCmd(opts),
		newImportCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newServeCmd(),
	)

	return root
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [relation]",
		Short: "Print a catalog relation descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := catalog.StatisticExtDataRelationName
			if len(args) == 1 {
				name = args[0]
			}

			reg := catalog.DefaultRegistry()

			desc, err := reg.ByName(name)
			if err != nil {
				n, perr := strconv.ParseUint(name, 10, 32)
				if perr != nil {
					return err
				}

				if desc, err = reg.ByOID(common.Oid(n)); err != nil {
					return err
				}
			}

			return printJSON(cmd.OutOrStdout(), desc)
		},
	}
}

func newAttnumCmd() *cobra.Command {
	var relation string

	cmd := &cobra.Command{
		Use:   "attnum <column>",
		Short: "Print the ordinal of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := catalog.DefaultRegistry().ByName(relation)
			if err != nil {
				return err
			}

			attnum, ok := desc.AttnumByName(args[0])
			if !ok {
				return fmt.Errorf("column %q of relation %q does not exist", args[0], relation)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), attnum)
			return err
		},
	}

	cmd.Flags().StringVar(&relation, "relation", catalog.StatisticExtDataRelationName, "relation name")

	return cmd
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty statistics store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := statextdata.InitStore(opts.dataDir, opts.fs); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", opts.dataDir)
			return err
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import JSON row dumps from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}

			res, err := statextdata.NewImporter(opts.fs, store, workers, opts.logger()).ImportDir(args[0])

			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}

			return err
		},
	}

	cmd.Flags().IntVar(&workers, "workers", statextdata.DefaultImportWorkers, "number of decoding workers")

	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pg_statistic_ext_data rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}

			rows, err := store.List()
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	var inherit bool

	cmd := &cobra.Command{
		Use:   "get <stxoid>",
		Short: "Print one pg_statistic_ext_data row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid stxoid %q: %w", args[0], err)
			}

			store, err := opts.openStore()
			if err != nil {
				return err
			}

			row, err := store.Get(common.Oid(n), inherit)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), row)
		},
	}

	cmd.Flags().BoolVar(&inherit, "inherit", false, "row computed over the inheritance tree")

	return cmd
}

func newServeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replicated HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with service settings")

	return cmd
}

// Serve runs the API entrypoint until ctx is done.
func Serve(ctx context.Context, envFile string) (err error) {
	e := &app.APIEntrypoint{ConfigPath: envFile}

	if err = e.Init(ctx); err != nil {
		return err
	}

	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return e.Run(ctx)
}

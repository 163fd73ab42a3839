package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/GraphCatalog/src/storage/catalog"
	"github.com/Blackdeer1524/GraphCatalog/src/storage/graph"
)

const defaultDemoGraph = "sql.sample"

type cli struct {
	envFile string
}

func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "graphcat",
		Short:         "Property graph catalog over file and relational storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(
		c.serveCommand(),
		c.graphsCommand(),
		c.schemaCommand(),
		c.copyCommand(),
		c.deleteCommand(),
		c.demoCommand(),
	)

	return root
}

// withStack runs fn against a catalog built from the environment and closes
// it afterwards.
func (c *cli) withStack(ctx context.Context, fn func(*Stack) error) (err error) {
	env, err := loadEnv(c.envFile)
	if err != nil {
		return err
	}

	log := newLogger(env.Environment)
	defer func() { _ = log.Sync() }()

	stack, err := newStack(ctx, env, afero.NewOsFs(), log)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, stack.Close()) }()

	return fn(stack)
}

func parseNames(args ...string) ([]catalog.QualifiedGraphName, error) {
	names := make([]catalog.QualifiedGraphName, 0, len(args))
	for _, arg := range args {
		qgn, err := catalog.ParseQualifiedGraphName(arg)
		if err != nil {
			return nil, err
		}

		names = append(names, qgn)
	}

	return names, nil
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, c.envFile)
		},
	}
}

func (c *cli) graphsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graphs",
		Short: "List the graphs of every namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStack(cmd.Context(), func(s *Stack) error {
				names, err := s.Catalog.GraphNames(cmd.Context())
				if err != nil {
					return err
				}

				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}

				return nil
			})
		},
	}
}

func (c *cli) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <namespace.graph>",
		Short: "Print the schema of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parseNames(args...)
			if err != nil {
				return err
			}

			return c.withStack(cmd.Context(), func(s *Stack) error {
				sc, err := s.Catalog.Schema(cmd.Context(), names[0])
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), sc)

				return nil
			})
		},
	}
}

func (c *cli) copyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <namespace.graph> <namespace.graph>",
		Short: "Store a graph under another name, possibly in another namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parseNames(args...)
			if err != nil {
				return err
			}

			return c.withStack(cmd.Context(), func(s *Stack) error {
				g, err := s.Catalog.Graph(cmd.Context(), names[0])
				if err != nil {
					return err
				}

				if err := s.Catalog.Store(cmd.Context(), names[1], g); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "copied %s to %s\n", names[0], names[1])

				return nil
			})
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace.graph>",
		Short: "Delete a stored graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := parseNames(args...)
			if err != nil {
				return err
			}

			return c.withStack(cmd.Context(), func(s *Stack) error {
				return s.Catalog.Delete(cmd.Context(), names[0])
			})
		},
	}
}

func (c *cli) demoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo [namespace.graph]",
		Short: "Store a two node sample graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultDemoGraph}
			}

			names, err := parseNames(args...)
			if err != nil {
				return err
			}

			return c.withStack(cmd.Context(), func(s *Stack) error {
				if err := s.Catalog.Store(cmd.Context(), names[0], graph.Sample()); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", names[0])

				return nil
			})
		},
	}
}

// Serve runs the HTTP API until ctx is done.
func Serve(ctx context.Context, envFile string) (err error) {
	e := &APIEntrypoint{EnvFile: envFile}
	defer func() { err = errors.Join(err, e.Close()) }()

	if err := e.Init(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		e.log.Info("shutting down")
		return nil
	}
}

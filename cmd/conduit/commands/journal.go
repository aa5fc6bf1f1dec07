package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tfkr-ae/conduit/db"
	"github.com/tfkr-ae/conduit/domain"
	"gopkg.in/yaml.v3"
)

func journalCmd(opts *options) *cobra.Command {
	var (
		limit  int
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the most recent dispatches and the journal statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepository(opts)
			if err != nil {
				return err
			}
			defer repo.Close()

			dispatches, err := repo.GetDispatches(limit)
			if err != nil {
				return err
			}
			stats, err := readStats(repo)
			if err != nil {
				return err
			}

			if asYAML {
				return writeYAML(cmd.OutOrStdout(), map[string]any{
					"stats":      stats,
					"dispatches": dispatchDocuments(dispatches),
				})
			}
			writeStats(cmd.OutOrStdout(), stats)
			return writeDispatches(cmd.OutOrStdout(), dispatches)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of dispatches to list, 0 for all")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <request-id>",
		Short: "Show every dispatch of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parsing request id %q : %w", args[0], err)
			}

			repo, err := openRepository(opts)
			if err != nil {
				return err
			}
			defer repo.Close()

			dispatches, err := repo.GetRequestDispatches(id)
			if err != nil {
				return fmt.Errorf("getting dispatches of request %s : %w", id, err)
			}
			return writeYAML(cmd.OutOrStdout(), dispatchDocuments(dispatches))
		},
	})
	return cmd
}

func openRepository(opts *options) (*db.Repository, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	conn, err := db.New(cfg.Path(cfg.Database))
	if err != nil {
		return nil, err
	}
	return db.NewRepository(conn), nil
}

type stats struct {
	Dispatches        int `yaml:"dispatches"`
	InvalidDispatches int `yaml:"invalid_dispatches"`
	Articles          int `yaml:"articles"`
}

func readStats(repo domain.StatsRepository) (stats, error) {
	var s stats
	var err error
	if s.Dispatches, err = repo.CountDispatches(); err != nil {
		return s, err
	}
	if s.InvalidDispatches, err = repo.CountInvalidDispatches(); err != nil {
		return s, err
	}
	if s.Articles, err = repo.CountArticles(); err != nil {
		return s, err
	}
	return s, nil
}

func writeStats(w io.Writer, s stats) {
	fmt.Fprintf(w, "dispatches: %d (invalid: %d)\narticles: %d\n\n", s.Dispatches, s.InvalidDispatches, s.Articles)
}

func writeDispatches(w io.Writer, dispatches []*domain.Dispatch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tREQUEST ID\tVERB\tOPERATION\tMETHOD\tPATH\tFORMAT\tVALID\tDURATION\tERROR")
	for _, d := range dispatches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			d.DispatchedAt.Local().Format(time.DateTime),
			d.RequestID, d.Verb, d.Operation, d.Method, d.Path, d.Format, d.Valid, d.Duration, d.Error)
	}
	return tw.Flush()
}

type dispatchDoc struct {
	ID           string `yaml:"id"`
	RequestID    string `yaml:"request_id"`
	Verb         string `yaml:"verb"`
	Operation    string `yaml:"operation"`
	Valid        bool   `yaml:"valid"`
	Format       string `yaml:"format,omitempty"`
	Method       string `yaml:"method"`
	Path         string `yaml:"path"`
	Error        string `yaml:"error,omitempty"`
	Duration     string `yaml:"duration"`
	DispatchedAt string `yaml:"dispatched_at"`
}

func dispatchDocument(d *domain.Dispatch) dispatchDoc {
	return dispatchDoc{
		ID:           d.ID.String(),
		RequestID:    d.RequestID.String(),
		Verb:         d.Verb,
		Operation:    d.Operation,
		Valid:        d.Valid,
		Format:       d.Format,
		Method:       d.Method,
		Path:         d.Path,
		Error:        d.Error,
		Duration:     d.Duration.String(),
		DispatchedAt: d.DispatchedAt.UTC().Format(time.RFC3339Nano),
	}
}

func dispatchDocuments(dispatches []*domain.Dispatch) []dispatchDoc {
	docs := make([]dispatchDoc, len(dispatches))
	for i, d := range dispatches {
		docs[i] = dispatchDocument(d)
	}
	return docs
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml : %w", err)
	}
	return encoder.Close()
}

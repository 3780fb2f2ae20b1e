package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"geoatlas/internal/etl"
	"geoatlas/internal/qualities"
	"geoatlas/internal/source"
)

func newETLCmd() *cobra.Command {
	etlCmd := &cobra.Command{
		Use:   "etl",
		Short: "Run ETL operations against the geodata store",
	}
	etlCmd.AddCommand(newETLUpdateCmd(), newETLFetchCmd())
	return etlCmd
}

func newETLUpdateCmd() *cobra.Command {
	var (
		sources  []string
		restrict []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Extract, transform and persist datasets",
		Long: `Runs the selected sources in registry order. Without --sources every
registered source runs. Restrictions narrow a run to matching quality
combinations, e.g. --restrict simplification_level=3.

Known sources: ` + strings.Join(sourceNames(), ", ") + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			restrictions, err := parseRestrictions(restrict)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			orch := etl.New(source.NewEnv(a.cfg, a.geo, a.meta, a.log))
			return orch.Update(cmd.Context(), etl.UpdateOptions{
				Sources:      sources,
				Restrictions: restrictions,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "sources", "s", nil, "sources to run (default: all)")
	cmd.Flags().StringArrayVarP(&restrict, "restrict", "r", nil, "restrict quality dimensions, dimension=value")
	return cmd
}

func newETLFetchCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download datasets into the local cache without loading them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			orch := etl.New(source.NewEnv(a.cfg, a.geo, a.meta, a.log))
			return orch.Fetch(cmd.Context(), etl.FetchOptions{Sources: sources})
		},
	}

	cmd.Flags().StringSliceVarP(&sources, "sources", "s", nil, "sources to fetch (default: all)")
	return cmd
}

func parseRestrictions(pairs []string) (qualities.Restrictions, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	r := make(qualities.Restrictions, len(pairs))
	for _, pair := range pairs {
		dim, val, ok := strings.Cut(pair, "=")
		dim = strings.TrimSpace(dim)
		val = strings.TrimSpace(val)
		if !ok || dim == "" || val == "" {
			return nil, fmt.Errorf("invalid restriction %q, expected dimension=value", pair)
		}
		r[dim] = val
	}
	return r, nil
}

func sourceNames() []string {
	srcs := source.All()
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name()
	}
	return names
}

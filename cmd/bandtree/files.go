package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
	"github.com/gyaneshwarpardhi/bandtree/internal/config"
	"github.com/gyaneshwarpardhi/bandtree/internal/export"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
	"github.com/gyaneshwarpardhi/bandtree/internal/validation"
)

var errInvalidTree = errors.New("tree is not valid")

// loadTree reads an exported tree. An empty from detects the format.
func loadTree(path, from string) (*tree.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := export.DetectFormat(path, data)
	if from != "" {
		if f, err = export.ParseFormat(from); err != nil {
			return nil, err
		}
	}
	s, err := export.Decode(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func loadCatalog(configPath string) (*catalog.Catalog, error) {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(loader.Config()); err != nil {
		return nil, err
	}
	return catalog.New(loader.Config().Bands), nil
}

func validateCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that every node has a question and every leaf a band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadTree(args[0], from)
			if err != nil {
				return err
			}
			res := validation.Validate(s)
			out := cmd.OutOrStdout()
			if res.Valid {
				fmt.Fprintf(out, "valid: %d nodes\n", s.Len())
				return nil
			}
			fmt.Fprintf(out, "invalid: %s\n", res.Message)
			for _, n := range s.Nodes() {
				kinds := res.Violations[n.ID]
				if len(kinds) == 0 {
					continue
				}
				names := make([]string, len(kinds))
				for i, k := range kinds {
					names[i] = string(k)
				}
				fmt.Fprintf(out, "  %s  %-24q %s\n", n.ID, n.Question, strings.Join(names, ", "))
			}
			return errInvalidTree
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Input format (flat, nested, yaml); detected when empty")
	return cmd
}

func showCmd() *cobra.Command {
	var from, configPath string
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a tree as a text outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadTree(args[0], from)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(configPath)
			if err != nil {
				return err
			}
			return export.Outline(cmd.OutOrStdout(), s, cat)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Input format (flat, nested, yaml); detected when empty")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file supplying band names")
	return cmd
}

func convertCmd() *cobra.Command {
	var from, to, output string
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Re-encode a tree as flat JSON, a nested document or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(to)
			if err != nil {
				return err
			}
			s, err := loadTree(args[0], from)
			if err != nil {
				return err
			}
			data, err := export.Encode(s, f)
			if err != nil {
				return err
			}
			if f != export.FormatYAML {
				data = append(data, '\n')
			}
			if output != "" {
				return os.WriteFile(output, data, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Input format (flat, nested, yaml); detected when empty")
	cmd.Flags().StringVarP(&to, "format", "f", "flat", "Output format (flat, nested, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func bandsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "bands [QUERY]",
		Short: "List the band catalog, fuzzy filtered by QUERY",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(configPath)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			for _, b := range cat.Search(query) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", b.ID, b.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file supplying the catalog")
	return cmd
}

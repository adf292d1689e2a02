package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workflow documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		docs, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no workflows stored")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%-40s %8d bytes  %s\n", d.ID, d.Size, d.Modified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <workflow>",
	Short: "Summarize a workflow document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		g, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d nodes, %d links, %d groups\n", args[0], len(g.Nodes), len(g.Links), len(g.Groups))
		for _, n := range g.NodesInOrder() {
			title := n.Title
			if title == "" {
				title = n.Type
			}
			fmt.Printf("  [%3d] %-30s mode=%s\n", n.ID, title, n.Mode)
			if n.WidgetValues != nil {
				for _, name := range n.WidgetValues.Names() {
					if v, ok := n.WidgetValues.Get(name); ok {
						fmt.Printf("        %s = %v\n", name, v.Interface())
					}
				}
			}
		}

		if g.Definitions != nil && len(g.Definitions.Subgraphs) > 0 {
			ids := make([]string, 0, len(g.Definitions.Subgraphs))
			for _, def := range g.Definitions.Subgraphs {
				ids = append(ids, fmt.Sprintf("%s (%s)", def.ID, def.Name))
			}
			sort.Strings(ids)
			fmt.Printf("subgraphs: %v\n", ids)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <workflow>",
	Short: "Delete a stored workflow document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return store.Delete(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, deleteCmd)
}

package main

import (
	"fmt"

	"github.com/ChronosX88/newsd/internal/utils"
	"github.com/spf13/cobra"
)

var (
	groupsCmd = &cobra.Command{
		Use:   "groups",
		Short: "Manage newsgroups",
	}

	groupsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists newsgroups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			match, _ := cmd.Flags().GetString("match")
			var w *utils.Wildmat
			if match != "" {
				var err error
				if w, err = utils.ParseWildmat(match); err != nil {
					return fmt.Errorf("invalid --match: %w", err)
				}
			}

			groups, err := newsClient.ListNewsgroups()
			if err != nil {
				return err
			}
			for _, g := range groups {
				if w != nil && !w.Match(g.Name) {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", g.ID, g.Name)
			}
			return nil
		},
	}

	groupsCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Creates a newsgroup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := newsClient.CreateNewsgroup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created newsgroup %d\n", id)
			return nil
		},
	}

	groupsDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a newsgroup with all of its articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			if err := newsClient.DeleteNewsgroup(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted successfully")
			return nil
		},
	}
)

func init() {
	groupsListCmd.Flags().String("match", "", "only show names matching a wildmat, e.g. 'comp.*,!comp.os.*'")

	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsCreateCmd)
	groupsCmd.AddCommand(groupsDeleteCmd)
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	articlesCmd = &cobra.Command{
		Use:   "articles",
		Short: "Read and post articles",
	}

	articlesListCmd = &cobra.Command{
		Use:   "list [group]",
		Short: "Lists the articles of a newsgroup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := parseID("group", args[0])
			if err != nil {
				return err
			}
			articles, err := newsClient.ListArticles(group)
			if err != nil {
				return err
			}
			for _, a := range articles {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", a.ID, a.Title)
			}
			return nil
		},
	}

	articlesCreateCmd = &cobra.Command{
		Use:   "create [group] [title] [author] [text]",
		Short: "Posts an article, reading the text from stdin when it is '-'",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := parseID("group", args[0])
			if err != nil {
				return err
			}
			text := args[3]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			id, err := newsClient.CreateArticle(group, args[1], args[2], text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created article %d\n", id)
			return nil
		},
	}

	articlesDeleteCmd = &cobra.Command{
		Use:   "delete [group] [article]",
		Short: "Deletes an article",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := parseID("group", args[0])
			if err != nil {
				return err
			}
			article, err := parseID("article", args[1])
			if err != nil {
				return err
			}
			if err := newsClient.DeleteArticle(group, article); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted successfully")
			return nil
		},
	}

	articlesGetCmd = &cobra.Command{
		Use:   "get [group] [article]",
		Short: "Prints an article",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := parseID("group", args[0])
			if err != nil {
				return err
			}
			article, err := parseID("article", args[1])
			if err != nil {
				return err
			}
			a, err := newsClient.GetArticle(group, article)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Title: %s\nAuthor: %s\n\n%s\n", a.Title, a.Author, a.Text)
			return nil
		},
	}
)

func init() {
	articlesCmd.AddCommand(articlesListCmd)
	articlesCmd.AddCommand(articlesCreateCmd)
	articlesCmd.AddCommand(articlesDeleteCmd)
	articlesCmd.AddCommand(articlesGetCmd)
}

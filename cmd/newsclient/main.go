package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ChronosX88/newsd/internal/client"
	"github.com/ChronosX88/newsd/internal/common"
	"github.com/spf13/cobra"
)

var (
	newsClient *client.Client

	rootCmd = &cobra.Command{
		Use:   "newsclient",
		Short: fmt.Sprintf("Command line client for %s", common.ServerName),
		Long: fmt.Sprintf(`newsclient (v%s)

Talks to a %s server: manages newsgroups and reads, posts and
removes articles.`, common.ServerVersion, common.ServerName),
		SilenceUsage:       true,
		PersistentPreRunE:  connect,
		PersistentPostRunE: disconnect,
	}
)

func init() {
	rootCmd.PersistentFlags().String("host", "127.0.0.1", "server host")
	rootCmd.PersistentFlags().Int("port", 7878, "server port")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "dial timeout")

	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(articlesCmd)
}

func connect(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	c, err := client.Dial(net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return err
	}
	newsClient = c
	return nil
}

func disconnect(_ *cobra.Command, _ []string) error {
	if newsClient == nil {
		return nil
	}
	return newsClient.Close()
}

func parseID(name, arg string) (int32, error) {
	id, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return int32(id), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

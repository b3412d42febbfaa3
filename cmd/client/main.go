// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	collabctl list                              --master http://localhost:8000
//	collabctl create "meeting notes"            --master http://localhost:8000
//	collabctl open 3 "meeting notes"            --master http://localhost:8000
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"collabd/internal/sdk"

	"github.com/spf13/cobra"
)

var (
	masterAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "collabctl",
		Short: "CLI client for the collaborative document service",
	}

	root.PersistentFlags().StringVarP(&masterAddr, "master", "m",
		"http://localhost:8000", "Master coordinator address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(listCmd(), createCmd(), openCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every document known to the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := sdk.NewMasterClient(masterAddr, timeout)
			docs, err := c.DocList(context.Background())
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Printf("%d\t%s\n", d.ID, d.Name)
			}
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new document and start an edit session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := sdk.NewMasterClient(masterAddr, timeout)
			result, err := c.CreateDocAndConnect(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created document %d %q on %s:%s\n", result.DocID, result.Name, result.IP, result.Port)
			return runSession(wsURL(result.IP, result.Port), result.DocID, result.Name)
		},
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <docID> <docName>",
		Short: "Connect to an existing document and start an edit session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("docID must be an integer: %w", err)
			}
			c := sdk.NewMasterClient(masterAddr, timeout)
			home, err := c.ConnectToExistingDoc(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("connecting to %s:%s\n", home.IP, home.Port)
			return runSession(wsURL(home.IP, home.Port), docID, args[1])
		},
	}
}

func wsURL(ip, port string) string {
	return fmt.Sprintf("ws://%s:%s", ip, port)
}

// runSession opens the document's edit channel and drives a minimal
// read-eval-print loop: the connection's incoming frames (document
// content, permission markers, peer updates) print as they arrive on a
// background goroutine, while typed commands drive requesting the edit
// token, sending content, and releasing it.
//
// Commands:
//
//	/edit            request the edit token
//	/set <text>      replace the document's content (only while editing)
//	/stop            release the edit token
//	/quit            close the session
func runSession(baseURL string, docID int64, docName string) error {
	ctx := context.Background()
	conn, err := sdk.DialEdit(ctx, baseURL, docID, docName, false)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			text, err := conn.ReadText()
			if err != nil {
				fmt.Println("connection closed:", err)
				return
			}
			fmt.Println(">>", text)
		}
	}()

	fmt.Println("commands: /edit, /set <text>, /stop, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return nil
		case line == "/edit":
			if err := conn.SendContent("request edit"); err != nil {
				return err
			}
		case line == "/stop":
			if err := conn.StopEditing(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "/set "):
			if err := conn.SendContent(strings.TrimPrefix(line, "/set ")); err != nil {
				return err
			}
		default:
			fmt.Println("unknown command")
		}
	}

	<-done
	return nil
}

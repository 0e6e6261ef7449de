package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/frartenzo/webeep-sync/internal/events"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Client.Login(cmd.Context()); err != nil {
				return err
			}

			if !quiet {
				sub := a.Bus.Subscribe(events.KindSyncFile, events.KindConnectivity)
				defer sub.Close()
				go func() {
					for ev := range sub.C() {
						switch ev := ev.(type) {
						case events.SyncFile:
							if ev.Error != "" {
								fmt.Printf("%s %s: %s\n", red.Render("failed"), ev.Path, ev.Error)
							} else {
								fmt.Printf("%s %s (%s)\n", green.Render("downloaded"), ev.Path, humanize.Bytes(uint64(ev.Size)))
							}
						case events.Connectivity:
							if ev.Online {
								fmt.Println(green.Render("connection restored"))
							} else {
								fmt.Println(red.Render("connection lost, retrying..."))
							}
						}
					}
				}()
			}

			result, err := a.Engine.Sync(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("\n%s %d files (%s) in %s",
				green.Render("Synced"),
				result.Downloaded,
				humanize.Bytes(uint64(result.Bytes)),
				result.Duration.Round(10*time.Millisecond))
			if result.Deleted > 0 {
				fmt.Printf(", removed %d", result.Deleted)
			}
			if n := len(result.FileErrors) + len(result.CourseErrors); n > 0 {
				fmt.Printf(", %s", red.Render(fmt.Sprintf("%d errors", n)))
			}
			if result.Canceled {
				fmt.Printf(" %s", gray.Render("(canceled)"))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final summary")
	return cmd
}

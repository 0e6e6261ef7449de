package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frartenzo/webeep-sync/internal/app"
	"github.com/frartenzo/webeep-sync/internal/moodle"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run in the background: control API plus periodic autosync",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newHeadlessApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// restore the stored token; daemon mode never prompts, so a
			// missing token just means autosync waits for 'webeep login'
			if err := a.Client.Login(cmd.Context()); err != nil {
				if !errors.Is(err, moodle.ErrLoginCanceled) {
					return err
				}
				fmt.Println(gray.Render("not logged in, run 'webeep login' to start syncing"))
			}

			showHeader()
			return app.NewDaemon(a).Start(cmd.Context())
		},
	}
}

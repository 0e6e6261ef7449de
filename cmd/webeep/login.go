package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the WeBeep platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if ok, _ := a.Client.Restore(); ok {
				fmt.Println(green.Render("Already logged in"))
				return nil
			}

			showHeader()
			if err := a.Client.Reauthenticate(cmd.Context()); err != nil {
				return err
			}

			// resolve identity so we can greet the user
			if _, err := a.Client.UserID(cmd.Context()); err != nil {
				fmt.Println(green.Render("Logged in"))
				return nil
			}
			fmt.Printf("Logged in as %s\n", cyan.Render(a.Client.Fullname()))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newHeadlessApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Client.Logout(); err != nil {
				return err
			}
			fmt.Println(green.Render("Logged out"))
			return nil
		},
	}
}

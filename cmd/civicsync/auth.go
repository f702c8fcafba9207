package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		p, err := a.session.Login(cmd.Context(), email, password)
		if err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "Logged in as %s <%s>", p.Name, p.Email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		p, err := a.session.Register(cmd.Context(), name, email, password)
		if err != nil {
			return cmdErr(err)
		}
		success(a.stdout, "Welcome, %s", p.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and revoke the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		if !a.session.IsAuthenticated() {
			fmt.Fprintln(a.stdout, dim("Not logged in."))
			return nil
		}
		if err := a.session.Logout(cmd.Context()); err != nil {
			warn(a.stderr, err.Error())
		}
		success(a.stdout, "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who is signed in",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd)
		p := a.session.CurrentPrincipal()
		if p == nil {
			fmt.Fprintln(a.stdout, dim("Not logged in."))
			return nil
		}
		fmt.Fprintf(a.stdout, "%s <%s>\n", p.Name, p.Email)
		return nil
	},
}

// passwordFlag returns --password, or reads one line from stdin.
func passwordFlag(cmd *cobra.Command) (string, error) {
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	_ = loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().String("name", "", "Display name")
	registerCmd.Flags().String("email", "", "Account email")
	registerCmd.Flags().String("password", "", "Password, at least 6 characters (read from stdin when omitted)")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

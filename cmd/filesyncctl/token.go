package main

import (
	"bufio"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/PhilTenno/filesyncgo/internal/util"
)

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{Use: "token", Short: "Manage trigger tokens"}
	tokenCmd.AddCommand(newTokenRotateCmd())
	tokenCmd.AddCommand(newTokenCreateCmd())
	tokenCmd.AddCommand(newTokenSetCmd())
	tokenCmd.AddCommand(newTokenShowCmd())
	tokenCmd.AddCommand(newTokenListCmd())
	tokenCmd.AddCommand(newTokenGetCmd())
	tokenCmd.AddCommand(newTokenDeleteCmd())
	return tokenCmd
}

func newTokenRotateCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the current token with a new random one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			token, cred, err := a.tokens.Rotate(cmd.Context(), length)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token rotated: id=%s\n%s\n", cred.ID, token)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", util.DefaultTokenLength,
		fmt.Sprintf("Token length (%d-%d)", util.MinTokenLength, util.MaxTokenLength))
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a new random token without removing existing ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			token, cred, err := a.tokens.Create(cmd.Context(), length)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token created: id=%s\n%s\n", cred.ID, token)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", util.DefaultTokenLength,
		fmt.Sprintf("Token length (%d-%d)", util.MinTokenLength, util.MaxTokenLength))
	return cmd
}

func newTokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store a token read from stdin as the current token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				return fmt.Errorf("no token on stdin")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			cred, err := a.tokens.Set(cmd.Context(), scanner.Text())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token set: id=%s %s\n", cred.ID, cred.Masked())
			return nil
		},
	}
}

func newTokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current token masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			masked, err := a.tokens.MaskedView(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), masked)
			return nil
		},
	}
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			creds, err := a.tokens.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTOKEN\tCREATED")
			for i := range creds {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					creds[i].ID, creds[i].Masked(), creds[i].CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newTokenGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one token and its rate limit window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			detail, err := a.tokens.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if detail == nil {
				return fmt.Errorf("token %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id=%s %s created=%s\n",
				detail.Credential.ID, detail.Credential.Masked(), detail.Credential.CreatedAt.Format(time.RFC3339))
			if detail.Window == nil {
				fmt.Fprintln(out, "window: unused")
				return nil
			}
			fmt.Fprintf(out, "window: count=%d start=%s\n",
				detail.Window.Count, detail.Window.WindowStart.Format(time.RFC3339))
			return nil
		},
	}
}

func newTokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a token and its rate limit window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.tokens.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("token %s not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token deleted")
			return nil
		},
	}
}

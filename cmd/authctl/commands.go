package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"royaltyhub.org/internal/auth"
)

const secretEnv = "ROYALTYHUB_TOKEN_SECRET"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Credential utilities for royaltyhub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPasswordCmd(), newTokenCmd())
	return root
}

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "password", Short: "Password hashing"}

	var cost int
	hash := &cobra.Command{
		Use:   "hash <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	hash.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default when 0)")
	cmd.AddCommand(hash)
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Session token utilities"}
	var secret string
	cmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv(secretEnv), "signing secret (env "+secretEnv+")")

	var (
		id     auth.Identity
		role   string
		ttl    time.Duration
		issuer string
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			id.Role = r
			id.Internal = r == auth.RoleInternal
			codec, err := newCodec(secret, auth.WithTTL(ttl), auth.WithIssuer(issuer))
			if err != nil {
				return err
			}
			token, exp, err := codec.Issue(id)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			return printJSON(cmd, map[string]any{"token": token, "expiresAt": exp.UTC().Format(time.RFC3339)})
		},
	}
	f := issue.Flags()
	f.StringVar(&id.UserID, "user", "", "user id")
	f.StringVar(&role, "role", "", "payee, internal, parent or client")
	f.StringVar(&id.ClientID, "client", "", "client id")
	f.StringVar(&id.ParentID, "parent", "", "parent id")
	f.StringVar(&id.PayeeID, "payee", "", "payee id")
	f.StringSliceVar(&id.ContractIDs, "contract", nil, "contract ids visible to a payee")
	f.DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	f.StringVar(&issuer, "issuer", "royaltyhub", "issuer claim")
	_ = issue.MarkFlagRequired("user")
	_ = issue.MarkFlagRequired("role")

	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token and print its identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := newCodec(secret)
			if err != nil {
				return err
			}
			got, err := codec.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			return printJSON(cmd, got)
		},
	}

	cmd.AddCommand(issue, inspect)
	return cmd
}

func newCodec(secret string, opts ...auth.CodecOption) (*auth.Codec, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required: pass --secret or set " + secretEnv)
	}
	return auth.NewCodec(secret, opts...)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

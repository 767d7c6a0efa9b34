package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
)

var (
	loginToken     string
	loginDevSecret string
	loginDevIssuer string
	loginDevRole   string
	loginDevUser   string
)

// gebeyactl login --token T
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token and switch to that identity's cart",
	Long:  "Stores the token issued by the identity provider. With --dev-secret a token is minted locally instead, for development stacks that share the signing secret.",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := loginToken
		if loginDevSecret != "" {
			minted, err := mintDevToken()
			if err != nil {
				return err
			}
			token = minted
		}
		if token == "" {
			return errors.New("either --token or --dev-secret is required")
		}
		identity := identityFromToken(token)
		if identity == "" {
			return errors.New("token has no subject")
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.prefs.SetToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		s.cart.Load(identity)
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%d items in cart)\n", identity, s.cart.TotalItems())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token; the guest cart becomes active",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.prefs.SetToken(""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

func mintDevToken() (string, error) {
	role, err := enums.ParseRole(loginDevRole)
	if err != nil {
		return "", err
	}
	userID := uuid.New()
	if loginDevUser != "" {
		if userID, err = uuid.Parse(loginDevUser); err != nil {
			return "", fmt.Errorf("invalid --user-id: %w", err)
		}
	}
	cfg := config.JWTConfig{Secret: loginDevSecret, Issuer: loginDevIssuer, ExpirationMinutes: 24 * 60}
	return auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
}

var langCmd = &cobra.Command{
	Use:   "lang",
	Short: "Show or change the display language",
}

var langShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current language",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.prefs.Language())
		return nil
	},
}

var langSetCmd = &cobra.Command{
	Use:   "set <en|am>",
	Short: "Persist the display language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.prefs.SetLanguage(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.prefs.Language())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token issued by the identity provider")
	loginCmd.Flags().StringVar(&loginDevSecret, "dev-secret", "", "mint a token locally with this HS256 secret")
	loginCmd.Flags().StringVar(&loginDevIssuer, "dev-issuer", "gebeya-identity", "issuer for locally minted tokens")
	loginCmd.Flags().StringVar(&loginDevRole, "role", "buyer", "role for locally minted tokens")
	loginCmd.Flags().StringVar(&loginDevUser, "user-id", "", "user id for locally minted tokens (random when empty)")

	langCmd.AddCommand(langShowCmd)
	langCmd.AddCommand(langSetCmd)
}

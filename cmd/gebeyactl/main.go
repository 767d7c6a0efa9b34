package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/gebeya-market/gebeya-backend/pkg/cart"
	"github.com/gebeya-market/gebeya-backend/pkg/client"
	"github.com/gebeya-market/gebeya-backend/pkg/localstore"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

var (
	apiURL   string
	stateDir string
	verbose  bool
)

// session is the client state shared by every subcommand.
type session struct {
	storage localstore.Storage
	prefs   *client.Prefs
	cart    *cart.Store
	token   string
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "gebeyactl",
	Short:         "Gebeya marketplace client",
	Long:          "gebeyactl keeps a local cart per identity and talks to the Gebeya API for checkout and order management.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultURL := os.Getenv("GEBEYA_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "API base URL")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for local state (defaults to the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log storage warnings")

	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(langCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func openSession() (*session, error) {
	dir := stateDir
	if dir == "" {
		var err error
		if dir, err = localstore.DefaultDir(); err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
	}
	storage, err := localstore.NewFile(dir)
	if err != nil {
		return nil, err
	}

	level := "error"
	if verbose {
		level = "warn"
	}
	logg := logger.New(logger.Options{ServiceName: "gebeyactl", Level: logger.ParseLevel(level), Output: os.Stderr})

	prefs := client.NewPrefs(storage)
	token, err := prefs.Token()
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	store := cart.New(storage, logg)
	store.Load(identityFromToken(token))
	return &session{storage: storage, prefs: prefs, cart: store, token: token}, nil
}

func (s *session) api() (*client.Client, error) {
	return client.New(apiURL, client.WithToken(s.token), client.WithLanguage(s.prefs.Language()))
}

// identityFromToken reads the subject without verifying the signature; it
// only selects which local cart to load. The server verifies the token.
func identityFromToken(token string) string {
	if strings.TrimSpace(token) == "" {
		return ""
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

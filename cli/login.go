package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallnest/taskwire/auth"
)

var (
	loginAccessToken  string
	loginRefreshToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a credential pair",
	Long:  `Store the access/refresh token pair issued by the backend login flow.`,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored credential",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored credential",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginAccessToken, "access-token", "", "Access token (required)")
	loginCmd.Flags().StringVar(&loginRefreshToken, "refresh-token", "", "Refresh token (required)")
	_ = loginCmd.MarkFlagRequired("access-token")
	_ = loginCmd.MarkFlagRequired("refresh-token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cred := &auth.Credential{
		AccessToken:  loginAccessToken,
		RefreshToken: loginRefreshToken,
	}
	if err := store.Save(cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	fmt.Println("Credential stored.")
	if exp := cred.ExpiresAt(); !exp.IsZero() {
		fmt.Printf("Access token expires at %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	fmt.Println("Credential cleared.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cred, err := store.Load()
	if err != nil {
		return err
	}
	if !cred.Valid() {
		return fmt.Errorf("no credential stored, run `taskwire login` first")
	}

	fmt.Printf("Access token:  %s...\n", truncateToken(cred.AccessToken))
	if cred.RefreshToken != "" {
		fmt.Printf("Refresh token: %s...\n", truncateToken(cred.RefreshToken))
	}
	if exp := cred.ExpiresAt(); !exp.IsZero() {
		fmt.Printf("Expires at:    %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Println("Expires at:    unknown (opaque token)")
	}
	return nil
}

func truncateToken(tok string) string {
	if len(tok) <= 12 {
		return tok
	}
	return tok[:12]
}

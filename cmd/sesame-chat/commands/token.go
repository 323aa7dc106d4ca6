package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	sesame "github.com/ijub/sesame-go/sdk"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the cached authentication token",
	Long: `Manage the cached Sesame authentication token.

Accounts are anonymous: 'token create' registers a fresh account and
caches its token. 'chat' does the same automatically when no usable
token is cached, so these commands are mostly for inspection and
recovery.`,
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a fresh anonymous account",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, store := newTokenManager(newClient())
		if _, err := manager.GetValidToken(cmd.Context(), true); err != nil {
			return err
		}
		printSuccess("Created account %s", manager.Record().UserID)
		printInfo("Token cached at %s", store.Path())
		return nil
	},
}

var tokenInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cached token and its account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		manager, store := newTokenManager(client)

		record := manager.Record()
		if record == nil {
			printInfo("No cached token at %s. Run 'sesame-chat token create' or just 'sesame-chat chat'.", store.Path())
			return nil
		}

		fmt.Printf("%-14s %s\n", "File:", store.Path())
		fmt.Printf("%-14s %s\n", "User ID:", record.UserID)
		fmt.Printf("%-14s %s\n", "Age:", record.Age().Round(time.Second))
		fmt.Printf("%-14s %v\n", "Expired:", record.IsExpired())

		resp, err := client.Auth.LookupAccount(cmd.Context(), record.IDToken)
		if err != nil {
			if sesame.IsInvalidToken(err) {
				printWarning("The service rejected this token; run 'sesame-chat token refresh'")
				return nil
			}
			return err
		}
		if len(resp.Users) == 0 {
			printWarning("The service returned no account for this token")
			return nil
		}
		account := resp.Users[0]
		fmt.Printf("%-14s %s\n", "Created:", formatEpochMS(account.CreatedAt))
		fmt.Printf("%-14s %s\n", "Last login:", formatEpochMS(account.LastLoginAt))
		if account.LastRefreshAt != "" {
			fmt.Printf("%-14s %s\n", "Last refresh:", account.LastRefreshAt)
		}
		return nil
	},
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a fresh ID token",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _ := newTokenManager(newClient())
		if _, err := manager.Refresh(cmd.Context()); err != nil {
			if errors.Is(err, sesame.ErrNoToken) {
				return fmt.Errorf("no cached token to refresh; run 'sesame-chat token create' first")
			}
			return err
		}
		printSuccess("Token refreshed for account %s", manager.Record().UserID)
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached token",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, store := newTokenManager(newClient())
		if err := manager.ClearTokens(); err != nil {
			return err
		}
		printSuccess("Cleared token cache at %s", store.Path())
		return nil
	},
}

// formatEpochMS renders the identity endpoints' millisecond-epoch
// timestamp strings as local time, passing anything unparseable through.
func formatEpochMS(s string) string {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05 MST")
}

func init() {
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenInfoCmd)
	tokenCmd.AddCommand(tokenRefreshCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

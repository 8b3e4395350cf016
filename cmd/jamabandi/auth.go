package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"jamabandi/pkg/auth"
	"jamabandi/pkg/portal"
	"jamabandi/pkg/ui"
)

var clearAll bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage portal session cookies",
	Long: `Manage stored portal session cookies securely.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

The portal issues a fresh session cookie after OTP login; it stays
valid for a limited time, so expect to refresh it between long runs.`,
}

// authSetCmd represents the auth set command
var authSetCmd = &cobra.Command{
	Use:   "set [profile]",
	Short: "Store a portal session cookie securely",
	Long: `Store a portal session cookie in the system keychain or encrypted file.

You will be prompted for the cookie value. It accepts either the bare
value or a full Cookie header copied from the browser's network tab.

To get the value:
1. Log into the portal in your browser (OTP login)
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies > jamabandi.nic.in
4. Copy the jamabandiID value`,
	Example: `  # Store under the default profile
  jamabandi auth set

  # Store under a named profile
  jamabandi auth set village-rohtak`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthSet,
}

// authShowCmd represents the auth show command
var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored session cookies",
	Long:  `List stored session cookie profiles with masked values.`,
	Run:   runAuthShow,
}

// authClearCmd represents the auth clear command
var authClearCmd = &cobra.Command{
	Use:   "clear [profile]",
	Short: "Remove stored session cookies",
	Long: `Remove a stored session cookie.

With no profile, the default profile is removed. Pass --all to remove
every stored profile.`,
	Example: `  # Remove the default profile
  jamabandi auth clear

  # Remove a named profile
  jamabandi auth clear village-rohtak

  # Remove everything
  jamabandi auth clear --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authClearCmd)

	authClearCmd.Flags().BoolVar(&clearAll, "all", false, "remove all stored profiles")
}

func runAuthSet(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)

	auth.ShowCookieExtractionGuide()

	fmt.Print("Ready to enter your cookie? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'jamabandi auth set' when you're ready.")
		return
	}

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("\nProfile '%s' already exists. Update it? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter the cookie value (it will be hidden as you type):")

	var cookie string
	for {
		fmt.Print("jamabandiID cookie value: ")
		cookie, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read cookie", err.Error())
			os.Exit(1)
		}
		cookie = strings.TrimSpace(cookie)

		// Accept a pasted Cookie header too
		if strings.Contains(cookie, "=") {
			if extracted := auth.ExtractCookieFromHeader(cookie, portal.SessionCookieName); extracted != "" {
				cookie = extracted
			}
		}

		if len(cookie) < 10 {
			fmt.Println("\nThat doesn't look like a valid session cookie.")
			fmt.Println("It should be a long opaque string from the jamabandiID cookie.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	cred := &auth.Credential{
		Profile:      profile,
		Cookie:       cookie,
		LastModified: time.Now(),
	}

	fmt.Println("\nStoring cookie securely...")
	if err := manager.Store(cred); err != nil {
		ui.PrintError("Failed to store cookie", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Session cookie saved: %s", profile))
	fmt.Println("\nStart a download with:")
	fmt.Println("  jamabandi scrape --start 1 --end 100")
}

func runAuthShow(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	creds, err := manager.List()
	if err != nil || len(creds) == 0 {
		ui.PrintWarning("No stored session cookies")
		fmt.Println("\nStore one with:")
		fmt.Println("  jamabandi auth set")
		return
	}

	fmt.Printf("Stored profiles (%d):\n\n", len(creds))
	for _, cred := range creds {
		masked := auth.Sanitize(cred)
		fmt.Printf("  %s\n", ui.Cyan(masked.Profile))
		fmt.Printf("    Cookie:   %s\n", masked.Cookie)
		fmt.Printf("    Modified: %s\n", masked.LastModified.Format("2006-01-02 15:04"))
		fmt.Println()
	}
}

func runAuthClear(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if clearAll {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Remove ALL stored session cookies? (y/N): ")
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove cookies", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All stored session cookies removed")
		return
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = strings.TrimSpace(args[0])
	}

	if err := manager.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No stored cookie for profile", profile)
			return
		}
		ui.PrintError("Failed to remove cookie", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Removed session cookie: %s", profile))
}

// readPassword reads a value from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		value, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(value), nil
		}
	}

	// Fallback to regular input when stdin is not a terminal
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

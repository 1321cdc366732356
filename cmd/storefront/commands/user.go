package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	// User create flags
	userEmail string
	userName  string
)

// userCmd groups account administration
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage storefront accounts",
}

// userCreateCmd creates an account without opening a session
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an account. The password is prompted for without echo, or read
from the first line of stdin when stdin is not a terminal.

Examples:
  storefront user create --email a@x.com --name Alice
  echo "$PW" | storefront user create --email a@x.com --name Alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserCreate(cmd.Context())
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Account email (required)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

// readPassword reads a password with masking, or plainly from a pipe.
func readPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func runUserCreate(ctx context.Context) error {
	cfg, log := loadConfig()
	defer log.Sync()

	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	users, books, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer users.Close()
	defer books.Close()

	manager := auth.NewManager(
		repo.NewUserRepository(users, log),
		auth.NewTokenSigner(cfg.SessionSecret),
		cfg.SessionTTL,
		log,
	)

	user, err := manager.CreateAccount(ctx, userEmail, password, userName)
	if errors.Is(err, auth.ErrDuplicateEmail) {
		return fmt.Errorf("an account for %q already exists", userEmail)
	}
	if err != nil {
		return err
	}

	log.Info("Account created", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

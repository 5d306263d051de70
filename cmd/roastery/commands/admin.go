package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

var (
	adminEmail         string
	adminName          string
	adminPassword      string
	adminPasswordStdin bool
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin user or promote an existing one",
	Long: `Create an administrator. If the email is already registered the account
is promoted to admin, and its password is replaced when one is given.

Examples:
  roastery admin create --email owner@example.com --name Owner --password-stdin < pw.txt
  roastery admin create --email ana@example.com      # promote an existing user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdminCreate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Email address (required)")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "Display name for a new account")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Password (prefer --password-stdin)")
	adminCreateCmd.Flags().BoolVar(&adminPasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = adminCreateCmd.MarkFlagRequired("email")
}

// adminRequest is a validated admin create invocation.
type adminRequest struct {
	Email    string
	Name     string
	Password string
}

func readAdminRequest(stdin io.Reader) (adminRequest, error) {
	req := adminRequest{
		Email:    store.NormalizeEmail(adminEmail),
		Name:     strings.TrimSpace(adminName),
		Password: adminPassword,
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return req, fmt.Errorf("--email %q is not a valid address", adminEmail)
	}
	if adminPasswordStdin {
		if req.Password != "" {
			return req, errors.New("use either --password or --password-stdin")
		}
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("failed to read password: %w", err)
		}
		req.Password = strings.TrimRight(line, "\r\n")
	}
	if req.Password != "" && utf8.RuneCountInString(req.Password) < auth.MinPasswordLength {
		return req, fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	return req, nil
}

// userStore is the part of the store admin create needs.
type userStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUserRole(ctx context.Context, id int, role string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id int, hash string) error
}

// ensureAdmin creates req as an admin, or promotes the existing account.
// It reports whether a new user was created.
func ensureAdmin(ctx context.Context, users userStore, req adminRequest) (*models.User, bool, error) {
	var hash string
	if req.Password != "" {
		h, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, false, err
		}
		hash = h
	}

	existing, err := users.GetUserByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, runtime.ErrNotFound):
		if hash == "" {
			return nil, false, errors.New("a password is required to create a new admin")
		}
		name := req.Name
		if name == "" {
			name = strings.SplitN(req.Email, "@", 2)[0]
		}
		u, err := users.CreateUser(ctx, &models.User{
			Email:        req.Email,
			Name:         name,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
		})
		return u, true, err
	case err != nil:
		return nil, false, err
	}

	if hash != "" {
		if err := users.UpdateUserPassword(ctx, existing.ID, hash); err != nil {
			return nil, false, err
		}
	}
	u, err := users.UpdateUserRole(ctx, existing.ID, models.RoleAdmin)
	return u, false, err
}

func runAdminCreate(cmd *cobra.Command) error {
	req, err := readAdminRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		u       *models.User
		created bool
	)
	err = store.New(db).WithTx(ctx, func(tx *store.Store) error {
		u, created, err = ensureAdmin(ctx, tx, req)
		return err
	})
	if err != nil {
		return err
	}

	out := printer(cmd)
	if jsonOutput {
		return out.JSON(u)
	}
	if created {
		out.Success("Created admin %s (id %d)", u.Email, u.ID)
	} else {
		out.Success("Promoted %s (id %d) to admin", u.Email, u.ID)
	}
	return nil
}

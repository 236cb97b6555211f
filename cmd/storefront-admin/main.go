// Command storefront-admin creates an administrator account, or promotes the
// existing account registered under the given email.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("storefront-admin", pflag.ContinueOnError)
	email := fs.StringP("email", "e", "", "email of the administrator")
	username := fs.StringP("username", "u", "", "username, used when a new account is created")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("the memory database driver keeps no accounts between runs")
	}
	logger := config.NewLogger(cfg.Logger)

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	hasher := services.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	auth := services.NewAuthService(repositories.NewGORMUserRepository(db), hasher, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	return createAdmin(ctx, auth, *email, *username, in, out)
}

func createAdmin(ctx context.Context, auth *services.AuthService, email, username string, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	var err error
	if email == "" {
		if email, err = prompt(reader, "Admin email", out); err != nil {
			return err
		}
	}
	if username == "" {
		if username, err = prompt(reader, "Admin username", out); err != nil {
			return err
		}
	}

	// The password is only used when no account exists for email.
	fmt.Fprint(out, "Password: ")
	password, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	user, created, err := auth.CreateAdmin(ctx, services.SignupInput{
		Username: username,
		Email:    email,
		Password: string(password),
	})
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(out, "Created administrator %s (%s)\n", user.Email, user.ID)
	} else {
		fmt.Fprintf(out, "Promoted %s (%s) to administrator\n", user.Email, user.ID)
	}
	return nil
}

func prompt(reader *bufio.Reader, label string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, label+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

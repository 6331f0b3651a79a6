package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/service"
	"golang.org/x/term"
)

// hash-password prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
	flag.Parse()

	cfg := config.Load()
	if *cost > 0 {
		cfg.BcryptCost = *cost
	}
	authService := service.NewAuthService(cfg)

	password, err := readPassword("Enter Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	confirm, err := readPassword("Confirm Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		os.Exit(1)
	}

	hash, err := authService.HashPassword(string(password))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error hashing password:", err)
		os.Exit(1)
	}
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // Newline after password input
	return pw, err
}

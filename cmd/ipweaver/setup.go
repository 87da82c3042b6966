package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/providers/cloudflare"
)

// runSetup interactively collects the API token, verifies it against the
// live API, and writes the secret file with owner-only permissions. It
// refuses to overwrite an existing file.
func runSetup() error {
	path := config.TokenFilePath()

	fmt.Printf("Enter API token: \n")
	byteToken, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("reading from stdin: %w", err)
	}
	token := string(byteToken)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	client := cloudflare.NewClient(token)
	if base := os.Getenv("IPWEAVER_API_BASE"); base != "" {
		client = cloudflare.NewClient(token, cloudflare.WithAPIEndpoint(base))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("verifying token: %w", err)
	}
	fmt.Println("token verified successfully")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, token); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}

	fmt.Printf("token written to %q\n", path)
	return nil
}

// verifyPermissions checks that the token file is readable by its owner
// only. 0400 is accepted alongside 0600 for read-only secret mounts.
func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking token file: %w", err)
	}

	switch perms := info.Mode().Perm(); perms {
	case 0600, 0400:
		return nil
	default:
		return fmt.Errorf("%q has permissions %q, expected \"-rw-------\" or \"-r--------\"", path, fs.FileMode(perms))
	}
}

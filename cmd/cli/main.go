// Command cli is a minimal command-line client: register, inspect the
// server, and move encrypted item blobs. It is a protocol tool, not a vault
// browser; content is uploaded and downloaded as-is.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/passman-project/passman/internal/client"
	"github.com/passman-project/passman/internal/suite"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [-s server] <command> [args]

commands:
  hello                          print server identity
  register <address>             create a user, prints the user id
  get <user-id> <address> <item-id> [out-file]
  put <user-id> <address> <item-id> <in-file>
  delete <user-id> <address> <item-id>
`, os.Args[0])
	os.Exit(2)
}

func main() {
	server := flag.String("s", "http://localhost:8080", "server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctx := context.Background()
	c := client.New(*server)
	reg := suite.NewRegistry()

	var err error
	switch args[0] {
	case "hello":
		err = runHello(ctx, c)
	case "register":
		err = runRegister(ctx, c, reg, args[1:])
	case "get":
		err = runGet(ctx, c, reg, args[1:])
	case "put":
		err = runPut(ctx, c, reg, args[1:])
	case "delete":
		err = runDelete(ctx, c, reg, args[1:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

func runHello(ctx context.Context, c *client.Client) error {
	hello, err := c.Hello(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("server %s protocol %s version %s\n", hello.ServerID, hello.ProtocolID, hello.ProtocolVersion)
	return nil
}

func runRegister(ctx context.Context, c *client.Client, reg *suite.Registry, args []string) error {
	if len(args) != 1 {
		usage()
	}
	address := args[0]

	password, err := promptPassword("password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("confirm password: ")
	if err != nil {
		return err
	}
	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	kr, err := client.NewKeyring(reg, suite.Sha256, suite.Ec25519, address, password)
	if err != nil {
		return err
	}
	defer kr.Wipe()

	userID, err := c.Register(ctx, address, kr.Auth())
	if err != nil {
		return err
	}
	if err := client.SaveAuth(userID, kr.Auth()); err != nil {
		return fmt.Errorf("registered as %s but caching auth material failed: %w", userID, err)
	}
	fmt.Printf("registered user %s\n", userID)
	return nil
}

// login unlocks the locally cached auth bundle with the password and runs
// the challenge-response exchange.
func login(ctx context.Context, c *client.Client, reg *suite.Registry, rawUserID, address string) (*client.Keyring, error) {
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	auth, err := client.LoadAuth(userID)
	if err != nil {
		return nil, err
	}
	password, err := promptPassword("password: ")
	if err != nil {
		return nil, err
	}
	kr, err := client.Unlock(reg, auth, address, password)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, c, kr, userID); err != nil {
		kr.Wipe()
		return nil, err
	}
	return kr, nil
}

func runGet(ctx context.Context, c *client.Client, reg *suite.Registry, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		usage()
	}
	kr, err := login(ctx, c, reg, args[0], args[1])
	if err != nil {
		return err
	}
	defer kr.Wipe()

	itemID, err := uuid.Parse(args[2])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	content, _, err := c.GetItemContent(ctx, itemID)
	if err != nil {
		return err
	}
	if len(args) == 4 {
		return os.WriteFile(args[3], content, 0o600)
	}
	_, err = os.Stdout.Write(content)
	return err
}

func runPut(ctx context.Context, c *client.Client, reg *suite.Registry, args []string) error {
	if len(args) != 4 {
		usage()
	}
	kr, err := login(ctx, c, reg, args[0], args[1])
	if err != nil {
		return err
	}
	defer kr.Wipe()

	itemID, err := uuid.Parse(args[2])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	content, err := os.ReadFile(args[3])
	if err != nil {
		return err
	}
	return c.PutItemContent(ctx, itemID, content, "application/octet-stream")
}

func runDelete(ctx context.Context, c *client.Client, reg *suite.Registry, args []string) error {
	if len(args) != 3 {
		usage()
	}
	kr, err := login(ctx, c, reg, args[0], args[1])
	if err != nil {
		return err
	}
	defer kr.Wipe()

	itemID, err := uuid.Parse(args[2])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	return c.DeleteItem(ctx, itemID)
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/wordswipe-sync/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [user]",
	Short: "Generate an MCP API key and its MCP_API_KEYS entry",
	Long: `Generate a random API key and print it together with the bcrypt hash to
put in MCP_API_KEYS. With --stdin an existing key is read from standard
input and only hashed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashKey,
}

func init() {
	hashKeyCmd.Flags().Bool("stdin", false, "Hash a key read from standard input instead of generating one")
	rootCmd.AddCommand(hashKeyCmd)
}

func runHashKey(cmd *cobra.Command, args []string) error {
	fromStdin, _ := cmd.Flags().GetBool("stdin")

	user := "user"
	if len(args) == 1 {
		user = args[0]
	}

	if strings.ContainsAny(user, ":,") {
		return fmt.Errorf("user must not contain ':' or ','")
	}

	out := cmd.OutOrStdout()

	if fromStdin {
		key, err := readKey(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return fmt.Errorf("hashing key: %w", err)
		}

		fmt.Fprintf(out, "%s:%s\n", user, hash)

		return nil
	}

	key, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	fmt.Fprintf(out, "key:   %s\n", key)
	fmt.Fprintf(out, "entry: %s:%s\n", user, hash)

	return nil
}

func readKey(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Enter key: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}

		return "", fmt.Errorf("no input")
	}

	key := strings.TrimSpace(scanner.Text())
	if key == "" {
		return "", fmt.Errorf("empty key")
	}

	return key, nil
}

package ace

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// keyBytes is the entropy of a generated app key.
const keyBytes = 32

func generateKeyCmd(opts *rootOptions) *cobra.Command {
	var (
		show bool
		file string
	)

	cmd := &cobra.Command{
		Use:   "generate:key",
		Short: "Generate a new APP_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := GenerateKey()
			if err != nil {
				return err
			}

			if show {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}

			path := file
			if !filepath.IsAbs(path) {
				path = filepath.Join(opts.root, path)
			}
			if err := WriteEnv(path, "APP_KEY", key); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "APP_KEY written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print the key instead of writing it")
	cmd.Flags().StringVar(&file, "file", ".env", "env file to update, relative to the root")
	return cmd
}

// GenerateKey returns a random URL safe key.
func GenerateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// WriteEnv sets key in the env file at path, creating the file when missing.
// Other entries are kept; comments are not.
func WriteEnv(path, key, value string) error {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		values = make(map[string]string)
	} else if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	values[key] = value
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

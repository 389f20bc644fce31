package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	tokens "github.com/dropDatabas3/liberty-web/internal/security/token"
	"github.com/dropDatabas3/liberty-web/internal/util/atomicwrite"
)

type envVar struct{ Key, Value string }

// frontEnv genera las variables del front: el cliente OIDC que el backend
// registra más el secreto de sesión.
func frontEnv(apiURL string, rnd io.Reader) ([]envVar, error) {
	// 6 dígitos, [100000, 999999]
	n, err := rand.Int(rnd, big.NewInt(900000))
	if err != nil {
		return nil, err
	}
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rnd, secret); err != nil {
		return nil, err
	}
	authSecret, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	return []envVar{
		{"API_URL", apiURL},
		{"AUTH_SECRET", authSecret},
		{"OIDC_CLIENT_ID", fmt.Sprintf("%d", n.Int64()+100000)},
		{"OIDC_CLIENT_SECRET", hex.EncodeToString(secret)},
	}, nil
}

func writeEnv(w io.Writer, vars []envVar) error {
	for _, v := range vars {
		if _, err := fmt.Fprintf(w, "%s=%s\n", v.Key, v.Value); err != nil {
			return err
		}
	}
	return nil
}

func newEnvCmd() *cobra.Command {
	var (
		apiURL string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Genera las variables de entorno del front (API_URL, AUTH_SECRET, OIDC_*)",
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := frontEnv(apiURL, rand.Reader)
			if err != nil {
				return fmt.Errorf("generate env: %w", err)
			}
			if out == "" {
				return writeEnv(cmd.OutOrStdout(), vars)
			}
			err = atomicwrite.Write(out, 0o600, func(w io.Writer) error {
				return writeEnv(w, vars)
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "ok: %s escrito\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "http://api:8000", "URL del backend Django")
	cmd.Flags().StringVar(&out, "out", "", "archivo destino (default: stdout)")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mossy-p/emocall/internal/middleware"
)

var (
	flagSecret  string
	flagSubject string
	flagTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "operator-token",
	Short: "Mint a bearer token for the operator room listing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := flagSecret
		if secret == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret = cfg.OperatorJWTSecret
		}
		if secret == "" {
			return errors.New("no secret: pass --secret or set OPERATOR_JWT_SECRET")
		}

		token, err := middleware.NewOperatorToken(secret, flagSubject, flagTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagSecret, "secret", "", "signing secret (default $OPERATOR_JWT_SECRET)")
	tokenCmd.Flags().StringVar(&flagSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", time.Hour, "token lifetime")
}

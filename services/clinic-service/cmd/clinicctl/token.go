package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/oralflow/oralflow/libs/auth"
	"github.com/oralflow/oralflow/libs/config"
)

// newTokenCommand signs HS256 tokens the gateway accepts, for local setups without
// the identity provider.
func newTokenCommand() *cobra.Command {
	var (
		subject   string
		role      int
		patientID int64
		dentistID int64
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role < 1 || role > 4 {
				return errors.New("rol must be between 1 and 4")
			}
			if subject == "" {
				subject = strconv.Itoa(role)
			}
			now := time.Now()
			claims := auth.Claims{
				Rol:          role,
				IDPaciente:   patientID,
				IDOdontologo: dentistID,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   subject,
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				},
			}
			secret, err := config.RequiredString("JWT_SECRET")
			if err != nil {
				return err
			}
			token, err := auth.SignHS256(claims, secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id (defaults to the role)")
	cmd.Flags().IntVar(&role, "rol", 0, "1 superadmin, 2 paciente, 3 odontologo, 4 admin")
	cmd.Flags().Int64Var(&patientID, "paciente", 0, "patient profile id")
	cmd.Flags().Int64Var(&dentistID, "odontologo", 0, "dentist profile id")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("rol")
	return cmd
}

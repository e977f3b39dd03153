package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload issued by the identity provider. Rol is the numeric
// clinic role (1 superadmin, 2 patient, 3 dentist, 4 clinic admin); the profile ids
// are present only for the matching roles.
type Claims struct {
	Rol          int   `json:"rol"`
	IDPaciente   int64 `json:"id_paciente,omitempty"`
	IDOdontologo int64 `json:"id_odontologo,omitempty"`
	jwt.RegisteredClaims
}

// Headers returns the identity headers forwarded to upstream services.
func (c *Claims) Headers() map[string]string {
	h := map[string]string{
		"X-User-Id": c.Subject,
		"X-Role":    strconv.Itoa(c.Rol),
	}
	if c.IDPaciente > 0 {
		h["X-Paciente-Id"] = strconv.FormatInt(c.IDPaciente, 10)
	}
	if c.IDOdontologo > 0 {
		h["X-Odontologo-Id"] = strconv.FormatInt(c.IDOdontologo, 10)
	}
	return h
}

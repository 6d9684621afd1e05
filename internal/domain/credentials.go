package domain

import (
	"strings"
	"time"
)

// Credentials son las credenciales de la API del CLOB derivadas de la clave de
// firma vía L1 auth. Solo las persiste el state store.
type Credentials struct {
	APIKey     string    `json:"apiKey"`
	Secret     string    `json:"secret"`
	Passphrase string    `json:"passphrase"`
	Address    string    `json:"address,omitempty"` // signer para el que se derivaron
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Empty indica si falta la API key.
func (c Credentials) Empty() bool {
	return c.APIKey == ""
}

// BoundTo indica si las credenciales pertenecen a address. Las escritas antes
// de guardar la dirección se aceptan para cualquier signer.
func (c Credentials) BoundTo(address string) bool {
	return c.Address == "" || strings.EqualFold(c.Address, address)
}

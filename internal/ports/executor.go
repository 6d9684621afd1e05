package ports

import (
	"context"

	"github.com/alejandrodnm/nobet/internal/domain"
)

// OrderSigner deriva credenciales del venue y envía órdenes límite firmadas.
type OrderSigner interface {
	// Address devuelve la dirección del signer a la que se atan las credenciales.
	Address() string

	// DeriveCredentials hace L1 auth contra el venue. La derivación es
	// determinista para una clave, así que repetirla es seguro.
	DeriveCredentials(ctx context.Context) (domain.Credentials, error)

	// SubmitLimitBuy firma y publica una orden límite BUY. Nunca se reintenta:
	// cualquier error es un rechazo o un resultado desconocido en el venue.
	SubmitLimitBuy(ctx context.Context, order domain.LimitOrder, creds domain.Credentials) (domain.PlacedOrder, error)
}

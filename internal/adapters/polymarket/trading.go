package polymarket

// trading.go — Real order execution via Polymarket CLOB API.
//
// Implements ports.OrderSigner using AuthClient for L1/L2 auth.
// Orders are GTC (good-till-cancelled) limit BUYs and are posted exactly once.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const (
	orderPath = "/order"
	// unknownOrderID marks an accepted order whose response carried no id.
	unknownOrderID = "unknown"
)

// TradingClient implements ports.OrderSigner.
type TradingClient struct {
	auth *AuthClient
}

// NewTradingClient creates a TradingClient.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{auth: auth}
}

// Address returns the signer address credentials are bound to.
func (tc *TradingClient) Address() string {
	return tc.auth.Address()
}

// DeriveCredentials runs L1 auth.
func (tc *TradingClient) DeriveCredentials(ctx context.Context) (domain.Credentials, error) {
	return tc.auth.DeriveCredentials(ctx)
}

// SubmitLimitBuy signs and submits a BUY limit order to the CLOB.
// The neg-risk lookup before signing is a read and may be retried; the POST is not.
func (tc *TradingClient) SubmitLimitBuy(ctx context.Context, order domain.LimitOrder, creds domain.Credentials) (domain.PlacedOrder, error) {
	negRisk, err := tc.auth.IsNegRisk(ctx, order.TokenID)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("submit order: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(order.TokenID, order.Price, order.Shares, negRisk)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("submit order: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       order.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          "BUY",
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     creds.APIKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, creds, http.MethodPost, orderPath, body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("submit order: post: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("submit order: clob rejected: %s", resp.ErrorMsg)
	}
	if resp.OrderID == "" {
		resp.OrderID = unknownOrderID
	}

	slog.Debug("order accepted",
		"order_id", resp.OrderID,
		"maker_amount", signed.Order.MakerAmount.String(),
		"taker_amount", signed.Order.TakerAmount.String(),
		"status", resp.Status,
		"token_id", order.TokenID,
		"neg_risk", negRisk,
	)

	return domain.PlacedOrder{
		OrderID:      resp.OrderID,
		Status:       resp.Status,
		TakingAmount: parseAmount(resp.TakingAmount),
		MakingAmount: parseAmount(resp.MakingAmount),
		SignedShares: fromBaseUnits(signed.Order.TakerAmount),
		SignedCost:   fromBaseUnits(signed.Order.MakerAmount),
	}, nil
}

// fromBaseUnits converts a 6-decimal on-chain amount to a float.
func fromBaseUnits(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -6).InexactFloat64()
}

// parseAmount convierte un importe decimal en string; vacío o inválido → 0.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

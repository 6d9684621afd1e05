package polymarket

// auth.go — Polymarket CLOB authenticated client.
//
// Implements two-level authentication:
//   L1: EIP-712 signature with wallet private key → derive API credentials
//   L2: HMAC-SHA256 signing of every authenticated request
//
// Credentials are never cached here: the state store owns them and passes
// them in on every call.

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const (
	polygonChainID = int64(137)

	// CLOB EIP-712 auth domain
	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	// Message signed for deriving API keys
	clobAuthMessage = "This message attests that I control the given wallet"

	deriveAPIKeyPath = "/auth/derive-api-key"

	// Taker address — zero address = public order
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// AuthClient wraps the base Client with L1/L2 auth capabilities.
type AuthClient struct {
	*Client
	privateKey    *ecdsa.PrivateKey
	address       common.Address // signer
	funder        common.Address // maker; equals signer for EOA wallets
	signatureType gomodel.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	now           func() time.Time
}

// NewAuthClient creates an authenticated trading client.
// privateKeyHex is the Polygon private key, with or without 0x prefix.
// An empty funder means the signer address funds its own orders.
func NewAuthClient(base *Client, privateKeyHex, funder string, signatureType int) (*AuthClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	funderAddr := addr
	if funder != "" {
		if !common.IsHexAddress(funder) {
			return nil, fmt.Errorf("auth: invalid funder address %q", funder)
		}
		funderAddr = common.HexToAddress(funder)
	}

	return &AuthClient{
		Client:        base,
		privateKey:    key,
		address:       addr,
		funder:        funderAddr,
		signatureType: orderSignatureType(signatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
		now:           time.Now,
	}, nil
}

func orderSignatureType(t int) gomodel.SignatureType {
	switch t {
	case 1:
		return gomodel.POLY_PROXY
	case 2:
		return gomodel.POLY_GNOSIS_SAFE
	default:
		return gomodel.EOA
	}
}

// Address returns the signer address.
func (ac *AuthClient) Address() string {
	return ac.address.Hex()
}

// Funder returns the address that holds the collateral.
func (ac *AuthClient) Funder() string {
	return ac.funder.Hex()
}

// DeriveCredentials derives API credentials via L1 auth. The venue returns
// the same credentials for the same key and nonce, so repeating the call
// after a crash is harmless.
func (ac *AuthClient) DeriveCredentials(ctx context.Context) (domain.Credentials, error) {
	var resp apiKeyResponse
	err := ac.doWithRetry(ctx, ac.clobLimiter, func() (*http.Response, error) {
		ts := strconv.FormatInt(ac.now().Unix(), 10)
		sig, err := ac.signClobAuth(ts, "0")
		if err != nil {
			return nil, fmt.Errorf("sign l1: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.clobBase+deriveAPIKeyPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("POLY_ADDRESS", ac.address.Hex())
		req.Header.Set("POLY_SIGNATURE", sig)
		req.Header.Set("POLY_TIMESTAMP", ts)
		req.Header.Set("POLY_NONCE", "0")
		return ac.http.Do(req)
	}, &resp)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("auth.DeriveCredentials: %w", err)
	}
	if resp.APIKey == "" || resp.Secret == "" || resp.Passphrase == "" {
		return domain.Credentials{}, fmt.Errorf("auth.DeriveCredentials: incomplete credentials in response")
	}

	return domain.Credentials{
		APIKey:     resp.APIKey,
		Secret:     resp.Secret,
		Passphrase: resp.Passphrase,
		Address:    ac.address.Hex(),
		CreatedAt:  ac.now().UTC(),
	}, nil
}

// EIP-712 type hashes (computed once).
var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId)",
	))
	clobAuthTypeHash = crypto.Keccak256Hash([]byte(
		"ClobAuth(address address,string timestamp,uint256 nonce,string message)",
	))
)

// clobAuthDomainSeparator computes the EIP-712 domain separator for ClobAuthDomain.
func clobAuthDomainSeparator() common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(clobDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(polygonChainID).Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// signClobAuth signs the ClobAuth EIP-712 typed data for L1 auth.
func (ac *AuthClient) signClobAuth(timestamp, nonce string) (string, error) {
	nonceInt, ok := new(big.Int).SetString(nonce, 10)
	if !ok {
		return "", fmt.Errorf("invalid nonce: %s", nonce)
	}

	var structBuf []byte
	structBuf = append(structBuf, clobAuthTypeHash.Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(ac.address.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(timestamp)).Bytes()...)
	structBuf = append(structBuf, common.LeftPadBytes(nonceInt.Bytes(), 32)...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(clobAuthMessage)).Bytes()...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, clobAuthDomainSeparator().Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	msgHash := crypto.Keccak256Hash(rawBuf)

	sig, err := crypto.Sign(msgHash.Bytes(), ac.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

// l2Headers returns the authenticated headers for L2 API calls.
func (ac *AuthClient) l2Headers(creds domain.Credentials, method, path, body string) (map[string]string, error) {
	if creds.Empty() {
		return nil, fmt.Errorf("auth: missing api credentials")
	}

	ts := strconv.FormatInt(ac.now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    creds.APIKey,
		"POLY_PASSPHRASE": creds.Passphrase,
	}, nil
}

// doL2 executes an authenticated L2 request exactly once. There is no retry
// on any failure: a resent POST /order could place the order twice.
func (ac *AuthClient) doL2(ctx context.Context, creds domain.Credentials, method, path string, reqBody, out any) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	if err := ac.clobLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	headers, err := ac.l2Headers(creds, method, path, bodyStr)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if bodyStr != "" {
		bodyReader = strings.NewReader(bodyStr)
	}
	req, err := http.NewRequestWithContext(ctx, method, ac.clobBase+path, bodyReader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ac.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// buildSignedOrder creates an EIP-712 signed BUY order for shares of tokenID
// at price. Uses integer arithmetic to avoid floating-point precision errors
// that the CLOB API rejects. The API verifies: makerAmount == price * takerAmount exactly.
func (ac *AuthClient) buildSignedOrder(tokenID string, price, shares float64, negRisk bool) (*gomodel.SignedOrder, error) {
	if price <= 0 || price >= 1 {
		return nil, fmt.Errorf("invalid price %.4f", price)
	}
	pricePrecision := detectPricePrecision(price)
	priceInt := int64(math.Round(price * float64(pricePrecision)))
	sharesCents := int64(math.Floor(shares*100 + 1e-9))

	amountFactor := int64(1_000_000) / (100 * pricePrecision)
	makerAmount := sharesCents * priceInt * amountFactor
	takerAmount := sharesCents * 10000

	if makerAmount <= 0 || takerAmount <= 0 {
		return nil, fmt.Errorf("invalid amounts: maker=%d taker=%d (price=%.4f shares=%.4f)", makerAmount, takerAmount, price, shares)
	}

	verifyingContract := gomodel.CTFExchange
	if negRisk {
		verifyingContract = gomodel.NegRiskCTFExchange
	}

	orderData := &gomodel.OrderData{
		Maker:         ac.funder.Hex(),
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        ac.address.Hex(),
		Expiration:    "0",
		Side:          gomodel.BUY,
		SignatureType: ac.signatureType,
	}

	signed, err := ac.orderBuilder.BuildSignedOrder(ac.privateKey, orderData, verifyingContract)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}
	return signed, nil
}

// detectPricePrecision returns the multiplier matching the market's tick size.
// e.g. price=0.60 → 100 (tick 0.01), price=0.673 → 1000 (tick 0.001).
func detectPricePrecision(price float64) int64 {
	for _, prec := range []int64{100, 1000, 10000} {
		rounded := math.Round(price * float64(prec))
		if math.Abs(rounded/float64(prec)-price) < 1e-10 {
			return prec
		}
	}
	return 100
}

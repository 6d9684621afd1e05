package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado del feed de Gamma. Gamma devuelve varios campos
// numéricos como strings y las listas de outcomes como JSON dentro de un string.
type gammaMarket struct {
	ID               string       `json:"id"`
	ConditionID      string       `json:"conditionId"`
	ConditionIDSnake string       `json:"condition_id"`
	Question         string       `json:"question"`
	Description      string       `json:"description"`
	Slug             string       `json:"slug"`
	EndDate          string       `json:"endDate"`
	EndDateISO       string       `json:"endDateIso"`
	EndDateISOSnake  string       `json:"end_date_iso"`
	Volume           flexFloat    `json:"volume"`
	VolumeNum        flexFloat    `json:"volumeNum"`
	Volume24h        flexFloat    `json:"volume24hr"`
	Outcomes         stringList   `json:"outcomes"`
	OutcomePrices    stringList   `json:"outcomePrices"`
	ClobTokenIDs     stringList   `json:"clobTokenIds"`
	Tokens           []gammaToken `json:"tokens"`
	Active           bool         `json:"active"`
	Closed           bool         `json:"closed"`
}

// gammaToken es la forma explícita de un outcome cuando Gamma la incluye.
type gammaToken struct {
	TokenID string    `json:"token_id"`
	Outcome string    `json:"outcome"`
	Price   flexFloat `json:"price"`
}

// flexFloat acepta números, strings numéricos, "" y null.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %q: %w", s, err)
	}
	*f = flexFloat{Value: v, Valid: true}
	return nil
}

// stringList acepta un array JSON o un array JSON serializado como string
// (`"[\"Yes\", \"No\"]"`). Los elementos numéricos se convierten a string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return err
		}
		if strings.TrimSpace(inner) == "" {
			*l = nil
			return nil
		}
		b = []byte(inner)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("stringList: %w", err)
	}
	out := make([]string, len(raw))
	for i, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out[i] = s
			continue
		}
		out[i] = string(bytes.TrimSpace(item))
	}
	*l = out
	return nil
}

// --- CLOB API ---

// orderBookResponse es la respuesta de GET /book.
type orderBookResponse struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobNegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

// apiKeyResponse es la respuesta de GET /auth/derive-api-key.
type apiKeyResponse struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

package onchain

// ledger.go — On-chain collateral operations for the trading wallet.
//
// Covers what the CLOB cannot do for us:
//   - POL and USDC.e balances
//   - ERC20 collateral transfers (withdrawals)
//   - One-time ERC20 approve + ERC1155 setApprovalForAll for the exchanges

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/nobet/internal/domain"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	DefaultCollateral = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Contracts that move collateral and outcome tokens on our behalf
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	negRiskAdapter  = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	collateralDecimals = 6
	nativeDecimals     = 18

	// Gas limits (conservative upper bounds)
	transferGasLimit = uint64(100_000)
	approvalGasLimit = uint64(80_000)

	gasPriceUpdateInterval = 5 * time.Minute
	fallbackGasPriceWei    = 30_000_000_000 // 30 gwei

	defaultReceiptTimeout = 2 * time.Minute
	defaultReceiptPoll    = 3 * time.Second
)

var (
	// MinWithdrawCollateral es el saldo por debajo del cual no hay nada que retirar.
	MinWithdrawCollateral = decimal.RequireFromString("0.01")
	// MinWithdrawGas es el POL mínimo para pagar una transferencia.
	MinWithdrawGas = decimal.RequireFromString("0.005")
	// MinApprovalGas es el POL mínimo para la tanda de aprobaciones.
	MinApprovalGas = decimal.RequireFromString("0.01")
)

// Errores de Transfer/EnsureApprovals que el CLI muestra tal cual.
var (
	ErrNoCollateral        = errors.New("no USDC to withdraw")
	ErrInsufficientGas     = errors.New("insufficient POL for gas")
	ErrInsufficientBalance = errors.New("insufficient USDC")
	ErrInvalidDestination  = errors.New("invalid destination address")
	ErrTransactionReverted = errors.New("transaction reverted on-chain")
)

var (
	erc20ABI   abi.ABI
	erc1155ABI abi.ABI
)

func init() {
	var err error

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "transfer",
			"type": "function",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "setApprovalForAll",
			"type": "function",
			"inputs": [
				{"name": "operator", "type": "address"},
				{"name": "approved", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}
}

// Backend is the subset of ethclient.Client the ledger needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Ledger implements ports.Ledger.
type Ledger struct {
	backend    Backend
	privateKey []byte
	address    common.Address
	collateral common.Address

	receiptTimeout time.Duration
	receiptPoll    time.Duration

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// NewLedger dials the Polygon RPC and returns a Ledger for the given key.
// An empty collateral address means USDC.e.
func NewLedger(rpcURL, privateKeyHex, collateral string) (*Ledger, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial rpc %s: %w", rpcURL, err)
	}
	l, err := NewLedgerWithBackend(client, privateKeyHex, collateral)
	if err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

// NewLedgerWithBackend builds a Ledger over an existing backend.
func NewLedgerWithBackend(backend Backend, privateKeyHex, collateral string) (*Ledger, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid private key: %w", err)
	}
	if collateral == "" {
		collateral = DefaultCollateral
	}
	if !common.IsHexAddress(collateral) {
		return nil, fmt.Errorf("ledger: invalid collateral address %q", collateral)
	}

	return &Ledger{
		backend:        backend,
		privateKey:     crypto.FromECDSA(privKey),
		address:        crypto.PubkeyToAddress(privKey.PublicKey),
		collateral:     common.HexToAddress(collateral),
		receiptTimeout: defaultReceiptTimeout,
		receiptPoll:    defaultReceiptPoll,
	}, nil
}

// WithReceiptPolling ajusta cada cuánto y hasta cuándo se espera un receipt.
func (l *Ledger) WithReceiptPolling(poll, timeout time.Duration) *Ledger {
	if poll > 0 {
		l.receiptPoll = poll
	}
	if timeout > 0 {
		l.receiptTimeout = timeout
	}
	return l
}

// Address returns the address that signs ledger transactions.
func (l *Ledger) Address() string {
	return l.address.Hex()
}

// Close releases the RPC connection, if any.
func (l *Ledger) Close() {
	if c, ok := l.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

// Balances returns the POL and collateral balances of address.
// An empty address means the signer.
func (l *Ledger) Balances(ctx context.Context, address string) (domain.Balances, error) {
	owner := l.address
	if address != "" {
		if !common.IsHexAddress(address) {
			return domain.Balances{}, fmt.Errorf("ledger.Balances: invalid address %q", address)
		}
		owner = common.HexToAddress(address)
	}

	native, collateral, err := l.rawBalances(ctx, owner)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("ledger.Balances: %w", err)
	}

	nativeF, _ := decimal.NewFromBigInt(native, -nativeDecimals).Float64()
	collateralF, _ := decimal.NewFromBigInt(collateral, -collateralDecimals).Float64()
	return domain.Balances{
		Address:    owner.Hex(),
		Native:     nativeF,
		Collateral: collateralF,
	}, nil
}

func (l *Ledger) rawBalances(ctx context.Context, owner common.Address) (native, collateral *big.Int, err error) {
	native, err = l.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("native balance: %w", err)
	}
	collateral, err = l.erc20BalanceOf(ctx, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("collateral balance: %w", err)
	}
	return native, collateral, nil
}

// Transfer sends amount of collateral from the signer to destination.
// amount <= 0 sends the whole balance.
func (l *Ledger) Transfer(ctx context.Context, destination string, amount float64) (domain.TxReceipt, error) {
	if !common.IsHexAddress(destination) {
		return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: %w: %q", ErrInvalidDestination, destination)
	}
	dest := common.HexToAddress(destination)

	native, collateral, err := l.rawBalances(ctx, l.address)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: %w", err)
	}
	have := decimal.NewFromBigInt(collateral, -collateralDecimals)
	gas := decimal.NewFromBigInt(native, -nativeDecimals)

	if have.LessThan(MinWithdrawCollateral) {
		return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: %w", ErrNoCollateral)
	}
	if gas.LessThan(MinWithdrawGas) {
		return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: %w (%s POL)", ErrInsufficientGas, gas.StringFixed(4))
	}

	send := collateral
	if amount > 0 {
		want := decimal.NewFromFloat(amount)
		send = want.Shift(collateralDecimals).Truncate(0).BigInt()
		if send.Cmp(collateral) > 0 {
			return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: %w (have $%s, want $%s)",
				ErrInsufficientBalance, have.StringFixed(2), want.StringFixed(2))
		}
	}

	callData, err := erc20ABI.Pack("transfer", dest, send)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("ledger.Transfer: pack: %w", err)
	}

	sendAmount, _ := decimal.NewFromBigInt(send, -collateralDecimals).Float64()
	slog.Info("ledger: sending collateral", "to", dest.Hex(), "amount", sendAmount)

	receipt, err := l.sendTx(ctx, l.collateral, callData, transferGasLimit, true)
	result := domain.TxReceipt{Destination: dest.Hex(), Amount: sendAmount}
	if receipt != nil {
		result.TxHash = receipt.TxHash.Hex()
		result.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			result.BlockNumber = receipt.BlockNumber.Uint64()
		}
	}
	if err != nil {
		return result, fmt.Errorf("ledger.Transfer: %w", err)
	}
	result.Success = true

	slog.Info("ledger: transfer confirmed", "tx", result.TxHash, "amount", sendAmount)
	return result, nil
}

// EnsureApprovals sets, where missing:
//   - ERC20 collateral approve for the three exchange contracts (BUY collateral)
//   - ERC1155 setApprovalForAll on the CTF contract for the same three
func (l *Ledger) EnsureApprovals(ctx context.Context) error {
	native, err := l.backend.BalanceAt(ctx, l.address, nil)
	if err != nil {
		return fmt.Errorf("ledger.EnsureApprovals: native balance: %w", err)
	}
	if gas := decimal.NewFromBigInt(native, -nativeDecimals); gas.LessThan(MinApprovalGas) {
		return fmt.Errorf("ledger.EnsureApprovals: %w (%s POL)", ErrInsufficientGas, gas.StringFixed(4))
	}

	operators := []string{normalExchange, negRiskExchange, negRiskAdapter}
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	minAllowance := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000)) // 1M USDC.e

	for _, op := range operators {
		spender := common.HexToAddress(op)
		allowance, err := l.erc20Allowance(ctx, spender)
		if err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: check allowance for %s: %w", op, err)
		}
		if allowance.Cmp(minAllowance) >= 0 {
			slog.Debug("ledger: collateral allowance sufficient", "spender", op)
			continue
		}

		callData, err := erc20ABI.Pack("approve", spender, maxUint256)
		if err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: pack approve: %w", err)
		}
		slog.Info("ledger: setting collateral approval", "spender", op)
		if _, err := l.sendTx(ctx, l.collateral, callData, approvalGasLimit, false); err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: approve %s: %w", op, err)
		}
	}

	ctf := common.HexToAddress(ctfAddress)
	for _, op := range operators {
		operator := common.HexToAddress(op)
		approved, err := l.isApprovedForAll(ctx, operator)
		if err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: check ERC1155 approval for %s: %w", op, err)
		}
		if approved {
			slog.Debug("ledger: ERC1155 approval already set", "operator", op)
			continue
		}

		callData, err := erc1155ABI.Pack("setApprovalForAll", operator, true)
		if err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: pack setApprovalForAll: %w", err)
		}
		slog.Info("ledger: setting ERC1155 approval", "operator", op)
		if _, err := l.sendTx(ctx, ctf, callData, approvalGasLimit, false); err != nil {
			return fmt.Errorf("ledger.EnsureApprovals: setApprovalForAll %s: %w", op, err)
		}
	}
	return nil
}

// sendTx signs, sends and waits for a contract call. With estimate set the
// gas limit comes from EstimateGas (+20%), falling back to gasLimit.
func (l *Ledger) sendTx(ctx context.Context, to common.Address, callData []byte, gasLimit uint64, estimate bool) (*types.Receipt, error) {
	privKey, err := crypto.ToECDSA(l.privateKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	nonce, err := l.backend.PendingNonceAt(ctx, l.address)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	gasPrice := l.gasPrice(ctx)

	if estimate {
		est, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     l.address,
			To:       &to,
			GasPrice: gasPrice,
			Data:     callData,
		})
		if err != nil {
			slog.Warn("ledger: gas estimate failed, using default", "err", err, "limit", gasLimit)
		} else {
			gasLimit = est * 12 / 10
		}
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(polygonChainID)), privKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	slog.Info("ledger: transaction sent", "tx", signed.Hash().Hex())

	receiptCtx, cancel := context.WithTimeout(ctx, l.receiptTimeout)
	defer cancel()

	receipt, err := l.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return &types.Receipt{TxHash: signed.Hash()}, fmt.Errorf("wait receipt %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.TxHash == (common.Hash{}) {
		receipt.TxHash = signed.Hash()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, signed.Hash().Hex())
	}
	return receipt, nil
}

func (l *Ledger) erc20BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return l.callUint(ctx, erc20ABI, l.collateral, "balanceOf", owner)
}

func (l *Ledger) erc20Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	return l.callUint(ctx, erc20ABI, l.collateral, "allowance", l.address, spender)
}

func (l *Ledger) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	callData, err := contract.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: callData}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, vals[0])
	}
	return v, nil
}

// isApprovedForAll checks ERC1155 approval for an operator on the CTF contract.
func (l *Ledger) isApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", l.address, operator)
	if err != nil {
		return false, err
	}
	ctf := common.HexToAddress(ctfAddress)
	out, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &ctf, Data: callData}, nil)
	if err != nil {
		return false, err
	}
	vals, err := erc1155ABI.Unpack("isApprovedForAll", out)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	approved, _ := vals[0].(bool)
	return approved, nil
}

// gasPrice returns the suggested gas price +10%, cached for a few minutes.
func (l *Ledger) gasPrice(ctx context.Context) *big.Int {
	l.mu.RLock()
	cached := l.cachedGasWei
	updatedAt := l.gasUpdatedAt
	l.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached
	}

	price, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached
		}
		slog.Warn("ledger: gas price unavailable, using fallback", "err", err)
		return big.NewInt(fallbackGasPriceWei)
	}

	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	l.mu.Lock()
	l.cachedGasWei = buffered
	l.gasUpdatedAt = time.Now()
	l.mu.Unlock()

	return buffered
}

// waitForReceipt polls for a transaction receipt until mined or ctx expires.
func (l *Ledger) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(l.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

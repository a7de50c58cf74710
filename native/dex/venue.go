package dex

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Hop is one leg of a swap route expressed in DEX denominations.
type Hop struct {
	PoolID uint64
	Denom  string
}

// SwapInput describes an exact-in swap executed by the interchain account.
type SwapInput struct {
	Sender string
	Denom  string
	Amount uint256.Int
	Route  []Hop
}

// Venue renders swaps for one DEX and parses their results.
type Venue interface {
	Name() string
	SwapMsg(in SwapInput) (Any, error)
	AmountOut(resp Any) (uint256.Int, error)
}

// Venue names accepted in configuration.
const (
	VenueNativeAMM = "native-amm"
	VenueRouter    = "router"
)

// NewVenue selects a venue by name. The router venue needs the router
// contract address on the DEX chain.
func NewVenue(name, router string) (Venue, error) {
	switch name {
	case VenueNativeAMM, "":
		return NativeAMM{}, nil
	case VenueRouter:
		if router == "" {
			return nil, fmt.Errorf("dex: router venue requires a contract address")
		}
		return Router{Contract: router}, nil
	default:
		return nil, fmt.Errorf("dex: unknown venue %q", name)
	}
}

// minOutput is the minimum amount out accepted by every swap.
const minOutput = "1"

// NativeAMM swaps through the DEX chain's pool manager module.
type NativeAMM struct{}

const (
	typeAmmSwap         = "/osmosis.poolmanager.v1beta1.MsgSwapExactAmountIn"
	typeAmmSwapResponse = "/osmosis.poolmanager.v1beta1.MsgSwapExactAmountInResponse"
)

type ammRoute struct {
	PoolID        string `json:"pool_id"`
	TokenOutDenom string `json:"token_out_denom"`
}

type ammSwap struct {
	Sender            string      `json:"sender"`
	Routes            []ammRoute  `json:"routes"`
	TokenIn           denomAmount `json:"token_in"`
	TokenOutMinAmount string      `json:"token_out_min_amount"`
}

type ammSwapResponse struct {
	TokenOutAmount string `json:"token_out_amount"`
}

func (NativeAMM) Name() string { return VenueNativeAMM }

func (NativeAMM) SwapMsg(in SwapInput) (Any, error) {
	if len(in.Route) == 0 {
		return Any{}, ErrNoSwapPath
	}
	routes := make([]ammRoute, len(in.Route))
	for i, hop := range in.Route {
		routes[i] = ammRoute{PoolID: strconv.FormatUint(hop.PoolID, 10), TokenOutDenom: hop.Denom}
	}
	return newAny(typeAmmSwap, ammSwap{
		Sender:            in.Sender,
		Routes:            routes,
		TokenIn:           denomAmount{Denom: in.Denom, Amount: in.Amount.Dec()},
		TokenOutMinAmount: minOutput,
	})
}

func (NativeAMM) AmountOut(resp Any) (uint256.Int, error) {
	if resp.TypeURL != typeAmmSwapResponse {
		return uint256.Int{}, fmt.Errorf("%w: unexpected response type %q", ErrInvalidResponse, resp.TypeURL)
	}
	var out ammSwapResponse
	if err := json.Unmarshal(resp.Value, &out); err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return parseAmount(out.TokenOutAmount)
}

// Router swaps through a router contract deployed on the DEX chain.
type Router struct {
	Contract string
}

const (
	typeExecute         = "/cosmwasm.wasm.v1.MsgExecuteContract"
	typeExecuteResponse = "/cosmwasm.wasm.v1.MsgExecuteContractResponse"
)

type assetInfo struct {
	NativeToken struct {
		Denom string `json:"denom"`
	} `json:"native_token"`
}

func nativeAsset(denom string) assetInfo {
	var a assetInfo
	a.NativeToken.Denom = denom
	return a
}

type routerOperation struct {
	Swap struct {
		OfferAssetInfo assetInfo `json:"offer_asset_info"`
		AskAssetInfo   assetInfo `json:"ask_asset_info"`
	} `json:"astro_swap"`
}

type routerSwap struct {
	ExecuteSwapOperations struct {
		Operations     []routerOperation `json:"operations"`
		MinimumReceive string            `json:"minimum_receive"`
	} `json:"execute_swap_operations"`
}

type executeContract struct {
	Sender   string          `json:"sender"`
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []denomAmount   `json:"funds"`
}

type executeResponse struct {
	Data string `json:"data"`
}

type routerResult struct {
	ReturnAmount string `json:"return_amount"`
}

func (Router) Name() string { return VenueRouter }

func (r Router) SwapMsg(in SwapInput) (Any, error) {
	if len(in.Route) == 0 {
		return Any{}, ErrNoSwapPath
	}
	var swap routerSwap
	offer := in.Denom
	for _, hop := range in.Route {
		var op routerOperation
		op.Swap.OfferAssetInfo = nativeAsset(offer)
		op.Swap.AskAssetInfo = nativeAsset(hop.Denom)
		swap.ExecuteSwapOperations.Operations = append(swap.ExecuteSwapOperations.Operations, op)
		offer = hop.Denom
	}
	swap.ExecuteSwapOperations.MinimumReceive = minOutput
	raw, err := json.Marshal(swap)
	if err != nil {
		return Any{}, err
	}
	return newAny(typeExecute, executeContract{
		Sender:   in.Sender,
		Contract: r.Contract,
		Msg:      raw,
		Funds:    []denomAmount{{Denom: in.Denom, Amount: in.Amount.Dec()}},
	})
}

func (Router) AmountOut(resp Any) (uint256.Int, error) {
	if resp.TypeURL != typeExecuteResponse {
		return uint256.Int{}, fmt.Errorf("%w: unexpected response type %q", ErrInvalidResponse, resp.TypeURL)
	}
	var out executeResponse
	if err := json.Unmarshal(resp.Value, &out); err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	var result routerResult
	if err := json.Unmarshal(data, &result); err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return parseAmount(result.ReturnAmount)
}

func parseAmount(s string) (uint256.Int, error) {
	var v uint256.Int
	if err := v.SetFromDecimal(s); err != nil {
		return uint256.Int{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidResponse, s, err)
	}
	return v, nil
}

package ledger

import (
	"context"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
)

// Signer holds the ledger signing material for mutating calls.
type Signer = signature.KeyringPair

// Weight is a two-dimensional execution budget.
type Weight struct {
	RefTime   uint64
	ProofSize uint64
}

// Encode implements scale.Encodeable. Both dimensions are compact on
// the wire.
func (w Weight) Encode(enc scale.Encoder) error {
	if err := encodeCompact(enc, w.RefTime); err != nil {
		return err
	}
	return encodeCompact(enc, w.ProofSize)
}

// Decode implements scale.Decodeable.
func (w *Weight) Decode(dec scale.Decoder) error {
	ref, err := dec.DecodeUintCompact()
	if err != nil {
		return err
	}
	proof, err := dec.DecodeUintCompact()
	if err != nil {
		return err
	}
	w.RefTime = ref.Uint64()
	w.ProofSize = proof.Uint64()
	return nil
}

// withMargin widens a dry-run estimate before submission. Runtimes
// reject calls whose limits sit exactly at the estimate.
func (w Weight) withMargin() Weight {
	return Weight{
		RefTime:   w.RefTime + w.RefTime/4,
		ProofSize: w.ProofSize + w.ProofSize/4,
	}
}

// CallRequest is one contract call, dry-run or submitted.
type CallRequest struct {
	// Origin is the calling 32-byte account.
	Origin AccountID

	// Dest is the contract's 20-byte address.
	Dest Address

	// Value is the balance transferred with the call.
	Value uint64

	// GasLimit bounds execution. Nil lets the dry-run estimate it.
	GasLimit *Weight

	// StorageDepositLimit caps the storage deposit. Nil is unlimited in
	// dry-runs; submissions must always set it.
	StorageDepositLimit *uint64

	// InputData is the selector-prefixed SCALE-encoded message call.
	InputData []byte
}

// DispatchError is a decoded runtime dispatch failure.
type DispatchError struct {
	// Module is set for module-level errors: the pallet index and the
	// error bytes, with the first byte being the variant.
	Module bool
	Index  uint8
	Error  [4]byte

	// Detail names non-module variants (BadOrigin, Token, ...).
	Detail string
}

// String renders the dispatch error for diagnostics.
func (d *DispatchError) String() string {
	if d.Module {
		return fmt.Sprintf("module error: pallet %d, error %d", d.Index, d.Error[0])
	}
	return d.Detail
}

// CallResult is the decoded outcome of a dry-run.
type CallResult struct {
	// GasConsumed and GasRequired are the dry-run's weight estimates.
	GasConsumed Weight
	GasRequired Weight

	// StorageDeposit is the charge estimated by the dry-run (zero for
	// refunds).
	StorageDeposit uint64

	// Reverted is set when the contract trapped or reverted; Data then
	// carries the encoded revert payload.
	Reverted bool

	// Data is the SCALE-encoded message return value.
	Data []byte

	// DispatchErr is set when the call failed before reaching the
	// contract.
	DispatchErr *DispatchError
}

// QueryConn is the read-side connection: it executes contract calls
// against the dry-run runtime API without submitting anything.
type QueryConn interface {
	Call(ctx context.Context, req *CallRequest) (*CallResult, error)
}

// Receipt is the outcome of a submitted extrinsic after inclusion.
type Receipt struct {
	TxHash      string
	BlockNumber uint32

	// Events holds the raw data payloads of the contract events emitted
	// by the call, in emission order.
	Events [][]byte
}

// MutateConn is the write-side connection: it signs, submits and awaits
// inclusion of contract calls.
type MutateConn interface {
	Submit(ctx context.Context, req *CallRequest, signer Signer) (*Receipt, error)
}

// revertFlag is the ExecReturnValue flags bit marking a revert.
const revertFlag = 0x1

// decodeExecResult decodes the runtime API's contract result: weights,
// storage deposit, and the nested Result<ExecReturnValue, DispatchError>.
func decodeExecResult(data []byte) (*CallResult, error) {
	dec := scaleDecoder(data)
	result := &CallResult{}

	if err := result.GasConsumed.Decode(*dec); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode gas_consumed", err)
	}
	if err := result.GasRequired.Decode(*dec); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode gas_required", err)
	}

	// StorageDeposit: Refund(u128) | Charge(u128).
	variant, err := dec.ReadOneByte()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode storage_deposit", err)
	}
	deposit, err := decodeU128(*dec)
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode storage_deposit amount", err)
	}
	if variant == 1 {
		result.StorageDeposit = deposit
	}

	// Result<ExecReturnValue, DispatchError>.
	ok, err := dec.ReadOneByte()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode exec result", err)
	}
	if ok != 0 {
		dispatchErr, err := decodeDispatchError(*dec)
		if err != nil {
			return nil, err
		}
		result.DispatchErr = dispatchErr
		return result, nil
	}

	var flags uint32
	if err := dec.Decode(&flags); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode return flags", err)
	}
	result.Reverted = flags&revertFlag != 0
	if err := dec.Decode(&result.Data); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode return data", err)
	}
	return result, nil
}

// dispatchErrorNames labels the non-module DispatchError variants.
var dispatchErrorNames = map[byte]string{
	0: "Other", 1: "CannotLookup", 2: "BadOrigin", 4: "ConsumerRemaining",
	5: "NoProviders", 6: "TooManyConsumers", 7: "Token", 8: "Arithmetic",
	9: "Transactional", 10: "Exhausted", 11: "Corruption", 12: "Unavailable",
	13: "RootNotAllowed",
}

func decodeDispatchError(dec scale.Decoder) (*DispatchError, error) {
	variant, err := dec.ReadOneByte()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode dispatch error", err)
	}

	if variant == 3 {
		d := &DispatchError{Module: true}
		if d.Index, err = dec.ReadOneByte(); err != nil {
			return nil, WrapError(ErrCodeDecodeFailed, "failed to decode module error", err)
		}
		if err = dec.Read(d.Error[:]); err != nil {
			return nil, WrapError(ErrCodeDecodeFailed, "failed to decode module error", err)
		}
		return d, nil
	}

	name, ok := dispatchErrorNames[variant]
	if !ok {
		name = fmt.Sprintf("variant %d", variant)
	}
	return &DispatchError{Detail: "dispatch error: " + name}, nil
}

// unwrapReturn peels the ink! dispatch layer off a message return:
// Result<T, LangError> on the wire. The returned bytes encode T.
func unwrapReturn(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewError(ErrCodeDecodeFailed, "empty return data")
	}
	if data[0] != 0 {
		return nil, NewError(ErrCodeDecodeFailed, "contract dispatch failed (lang error)")
	}
	return data[1:], nil
}

// unwrapResult peels a contract-level Result<T, Error> and converts the
// error variant into a coded adapter error. The returned bytes encode T.
func unwrapResult(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewError(ErrCodeDecodeFailed, "empty result data")
	}
	if data[0] == 0 {
		return data[1:], nil
	}
	if len(data) < 2 {
		return nil, NewError(ErrCodeDecodeFailed, "truncated contract error")
	}
	return nil, contractErr(ContractError(data[1]))
}

package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryConn struct {
	handler func(req *CallRequest) (*CallResult, error)
	calls   []*CallRequest
}

func (f *fakeQueryConn) Call(_ context.Context, req *CallRequest) (*CallResult, error) {
	f.calls = append(f.calls, req)
	return f.handler(req)
}

type fakeMutateConn struct {
	receipt *Receipt
	err     error
	calls   []*CallRequest
}

func (f *fakeMutateConn) Submit(_ context.Context, req *CallRequest, _ Signer) (*Receipt, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func testSigner() Signer {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i + 1)
	}
	return Signer{PublicKey: pub}
}

var testContract = Address{0xde, 0xad, 0xbe, 0xef}

// okReturn wraps a message payload in the dispatch-ok layer.
func okReturn(payload ...byte) []byte {
	return append([]byte{0}, payload...)
}

// okResult wraps a payload in both the dispatch-ok and contract-ok
// layers, as Result-returning messages produce.
func okResult(payload ...byte) []byte {
	return append([]byte{0, 0}, payload...)
}

func encodeBytes(t *testing.T, steps ...func(scale.Encoder) error) []byte {
	t.Helper()
	data, err := scaleEncode(steps...)
	require.NoError(t, err)
	return data
}

func u128Bytes(t *testing.T, v uint64) []byte {
	return encodeBytes(t, func(enc scale.Encoder) error { return encodeU128(enc, v) })
}

func successDryRun(data []byte) *CallResult {
	return &CallResult{
		GasRequired:    Weight{RefTime: 1000, ProofSize: 100},
		StorageDeposit: 400,
		Data:           data,
	}
}

func TestNormalizeHash(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)
	hexStr := "abababababababababababababababababababababababababababababababab"

	want := Hash{}
	copy(want[:], raw)

	for name, input := range map[string]any{
		"raw bytes":   raw,
		"hex":         hexStr,
		"hex with 0x": "0x" + hexStr,
		"typed hash":  want,
		"fixed array": [32]byte(want),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeHash(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for name, input := range map[string]any{
		"short bytes": raw[:31],
		"short hex":   hexStr[:62],
		"bad hex":     "0xzz",
		"nil":         nil,
		"wrong type":  42,
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := NormalizeHash(input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEnumWireRoundTrip(t *testing.T) {
	for _, g := range []Granularity{GranularityProductClass, GranularityBatch, GranularityItem} {
		data := encodeBytes(t, g.Encode)
		var got Granularity
		require.NoError(t, got.Decode(*scaleDecoder(data)))
		assert.Equal(t, g, got)
	}

	var g Granularity
	err := g.Decode(*scaleDecoder([]byte{9}))
	assert.ErrorIs(t, err, ErrDecodeFailed)

	for _, s := range []PassportStatus{StatusDraft, StatusActive, StatusSuspended, StatusRevoked, StatusArchived} {
		data := encodeBytes(t, s.Encode)
		var got PassportStatus
		require.NoError(t, got.Decode(*scaleDecoder(data)))
		assert.Equal(t, s, got)
	}

	var s PassportStatus
	err = s.Decode(*scaleDecoder([]byte{7}))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestPassportRecordWireRoundTrip(t *testing.T) {
	subject := Hash{1, 2, 3}
	record := PassportRecord{
		TokenID:       42,
		Issuer:        Address{0xaa},
		DatasetURI:    "ipfs://bafy.../vc.jwt",
		PayloadHash:   Hash{0xff},
		DatasetType:   "application/vc+jwt",
		Version:       3,
		Status:        StatusActive,
		CreatedAt:     100,
		UpdatedAt:     250,
		Granularity:   GranularityBatch,
		SubjectIDHash: &subject,
	}

	data := encodeBytes(t, record.Encode)
	var got PassportRecord
	require.NoError(t, got.Decode(*scaleDecoder(data)))
	assert.Equal(t, record, got)

	// Absent subject hash.
	record.SubjectIDHash = nil
	data = encodeBytes(t, record.Encode)
	got = PassportRecord{}
	require.NoError(t, got.Decode(*scaleDecoder(data)))
	assert.Nil(t, got.SubjectIDHash)
}

func TestSelectors(t *testing.T) {
	seen := map[string]string{}
	for _, label := range []string{
		msgRegisterPassport, msgGetPassport, msgUpdateDataset, msgRevokePassport,
		msgTransfer, msgOwnerOf, msgNextTokenID, msgFindTokenBySubjectID,
	} {
		sel := selector(label)
		require.Len(t, sel, 4)
		assert.Equal(t, sel, selector(label), "selectors are deterministic")
		key := string(sel)
		assert.NotContains(t, seen, key, "selector collision between %s and %s", label, seen[key])
		seen[key] = label
	}
}

func TestBridgeAccount(t *testing.T) {
	var a, b AccountID
	a[0] = 1
	b[0] = 2

	addrA := BridgeAccount(a)
	assert.Equal(t, addrA, BridgeAccount(a), "bridging is deterministic")
	assert.NotEqual(t, addrA, BridgeAccount(b))

	// ResolveAddress bridges 32-byte accounts and passes 20-byte
	// addresses through.
	resolved, err := ResolveAddress("0x" + hex.EncodeToString(a[:]))
	require.NoError(t, err)
	assert.Equal(t, addrA, resolved)

	direct, err := ResolveAddress(addrA.Hex())
	require.NoError(t, err)
	assert.Equal(t, addrA, direct)

	_, err = ResolveAddress("0x0102")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubjectHash(t *testing.T) {
	plain := SubjectHash("urn:product:battery-7", "", "")
	batch := SubjectHash("urn:product:battery-7", "B-2026-01", "")
	serial := SubjectHash("urn:product:battery-7", "", "SN-0001")

	assert.Equal(t, Hash(sha256.Sum256([]byte("urn:product:battery-7"))), plain)
	assert.Equal(t, Hash(sha256.Sum256([]byte("urn:product:battery-7#B-2026-01"))), batch)
	assert.NotEqual(t, batch, serial)

	// Batch takes precedence over serial.
	both := SubjectHash("urn:product:battery-7", "B-2026-01", "SN-0001")
	assert.Equal(t, batch, both)
}

func TestDecodeExecResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		raw := encodeBytes(t,
			Weight{RefTime: 5, ProofSize: 6}.Encode,
			Weight{RefTime: 50, ProofSize: 60}.Encode,
			func(enc scale.Encoder) error { // StorageDeposit::Charge(700)
				if err := enc.PushByte(1); err != nil {
					return err
				}
				return encodeU128(enc, 700)
			},
			func(enc scale.Encoder) error { // Ok(ExecReturnValue)
				if err := enc.PushByte(0); err != nil {
					return err
				}
				if err := enc.Encode(uint32(0)); err != nil {
					return err
				}
				return enc.Encode([]byte{0, 0, 9})
			},
		)

		result, err := decodeExecResult(raw)
		require.NoError(t, err)
		assert.Equal(t, Weight{RefTime: 50, ProofSize: 60}, result.GasRequired)
		assert.Equal(t, uint64(700), result.StorageDeposit)
		assert.False(t, result.Reverted)
		assert.Equal(t, []byte{0, 0, 9}, result.Data)
	})

	t.Run("revert flag", func(t *testing.T) {
		raw := encodeBytes(t,
			Weight{}.Encode,
			Weight{}.Encode,
			func(enc scale.Encoder) error {
				if err := enc.PushByte(0); err != nil {
					return err
				}
				return encodeU128(enc, 0)
			},
			func(enc scale.Encoder) error {
				if err := enc.PushByte(0); err != nil {
					return err
				}
				if err := enc.Encode(uint32(revertFlag)); err != nil {
					return err
				}
				return enc.Encode([]byte{0, 1, byte(ContractErrUnauthorized)})
			},
		)

		result, err := decodeExecResult(raw)
		require.NoError(t, err)
		assert.True(t, result.Reverted)
	})

	t.Run("module dispatch error", func(t *testing.T) {
		raw := encodeBytes(t,
			Weight{}.Encode,
			Weight{}.Encode,
			func(enc scale.Encoder) error {
				if err := enc.PushByte(0); err != nil {
					return err
				}
				return encodeU128(enc, 0)
			},
			func(enc scale.Encoder) error { // Err(DispatchError::Module{8, [5,0,0,0]})
				if err := enc.PushByte(1); err != nil {
					return err
				}
				if err := enc.PushByte(3); err != nil {
					return err
				}
				if err := enc.PushByte(8); err != nil {
					return err
				}
				return enc.Write([]byte{5, 0, 0, 0})
			},
		)

		result, err := decodeExecResult(raw)
		require.NoError(t, err)
		require.NotNil(t, result.DispatchErr)
		assert.True(t, result.DispatchErr.Module)
		assert.Equal(t, uint8(8), result.DispatchErr.Index)
		assert.Contains(t, result.DispatchErr.String(), "pallet 8")
	})
}

func TestDryRunRevertDecodesContractError(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return &CallResult{
			Reverted: true,
			Data:     []byte{0, 1, byte(ContractErrUnauthorized)},
		}, nil
	}}
	mutate := &fakeMutateConn{}
	adapter := NewAdapterWithConns(testContract, query, mutate)

	_, err := adapter.Register(context.Background(), Registration{
		DatasetURI:  "ipfs://x",
		PayloadHash: bytes.Repeat([]byte{1}, 32),
		DatasetType: "application/vc+jwt",
		Granularity: GranularityItem,
	}, testSigner())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDryRunReverted)
	assert.Contains(t, err.Error(), "Unauthorized", "decoded contract errors take priority")
	assert.Empty(t, mutate.calls, "reverted dry-runs never submit")
}

func TestRegisterReadsTokenFromEvent(t *testing.T) {
	event := encodeBytes(t, PassportRegisteredEvent{
		TokenID:     7,
		Issuer:      Address{0xaa},
		DatasetURI:  "ipfs://x",
		PayloadHash: Hash{1},
		DatasetType: "application/vc+jwt",
		Version:     1,
		CreatedAt:   12,
	}.Encode)

	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return successDryRun(okResult(u128Bytes(t, 7)...)), nil
	}}
	mutate := &fakeMutateConn{receipt: &Receipt{
		TxHash:      "0xfeed",
		BlockNumber: 99,
		Events:      [][]byte{event},
	}}
	adapter := NewAdapterWithConns(testContract, query, mutate)

	result, err := adapter.Register(context.Background(), Registration{
		DatasetURI:    "ipfs://x",
		PayloadHash:   bytes.Repeat([]byte{1}, 32),
		DatasetType:   "application/vc+jwt",
		Granularity:   GranularityBatch,
		SubjectIDHash: SubjectHash("urn:product:battery-7", "B-1", ""),
	}, testSigner())
	require.NoError(t, err)

	assert.Equal(t, uint64(7), result.TokenID)
	assert.Equal(t, "0xfeed", result.TxHash)
	assert.Equal(t, uint32(99), result.BlockNumber)

	// The submission carries widened limits derived from the dry-run.
	require.Len(t, mutate.calls, 1)
	submitted := mutate.calls[0]
	require.NotNil(t, submitted.GasLimit)
	assert.Equal(t, uint64(1250), submitted.GasLimit.RefTime)
	require.NotNil(t, submitted.StorageDepositLimit)
	assert.Equal(t, uint64(500), *submitted.StorageDepositLimit)

	// Only the register dry-run hit the query side.
	require.Len(t, query.calls, 1)
	assert.Equal(t, selector(msgRegisterPassport), query.calls[0].InputData[:4])
}

func TestRegisterFallsBackToCounter(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		if bytes.Equal(req.InputData[:4], selector(msgNextTokenID)) {
			return successDryRun(okReturn(u128Bytes(t, 8)...)), nil
		}
		return successDryRun(okResult(u128Bytes(t, 7)...)), nil
	}}
	mutate := &fakeMutateConn{receipt: &Receipt{
		TxHash:      "0xfeed",
		BlockNumber: 99,
		Events:      [][]byte{{0xde, 0xad}}, // undecodable event payload
	}}
	adapter := NewAdapterWithConns(testContract, query, mutate)

	result, err := adapter.Register(context.Background(), Registration{
		DatasetURI:  "ipfs://x",
		PayloadHash: bytes.Repeat([]byte{1}, 32),
		DatasetType: "application/vc+jwt",
		Granularity: GranularityItem,
	}, testSigner())
	require.NoError(t, err)

	assert.Equal(t, uint64(7), result.TokenID, "counter − 1 infers the created token")
	require.Len(t, query.calls, 2, "fallback issues one extra counter query")
}

func TestRegisterValidatesBeforeDialing(t *testing.T) {
	// Nil connections: any network use would panic.
	adapter := NewAdapterWithConns(testContract, nil, nil)
	adapter.dialQuery = func() (QueryConn, error) {
		t.Fatal("validation must reject before dialing")
		return nil, nil
	}

	_, err := adapter.Register(context.Background(), Registration{
		DatasetURI:  "",
		PayloadHash: bytes.Repeat([]byte{1}, 32),
		DatasetType: "application/vc+jwt",
	}, testSigner())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = adapter.Register(context.Background(), Registration{
		DatasetURI:  "ipfs://x",
		PayloadHash: "0x1234",
		DatasetType: "application/vc+jwt",
	}, testSigner())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPassport(t *testing.T) {
	record := PassportRecord{
		TokenID:     5,
		Issuer:      Address{0xaa},
		DatasetURI:  "ipfs://x",
		PayloadHash: Hash{2},
		DatasetType: "application/vc+jwt",
		Version:     1,
		Status:      StatusActive,
		Granularity: GranularityItem,
	}
	encoded := encodeBytes(t, record.Encode)

	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		if req.InputData[4] == 5 { // low byte of the u128 token id
			return successDryRun(okReturn(append([]byte{1}, encoded...)...)), nil
		}
		return successDryRun(okReturn(0)), nil // None
	}}
	adapter := NewAdapterWithConns(testContract, query, nil)

	got, err := adapter.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, record, *got)

	_, err = adapter.Get(context.Background(), 6)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRevokeAndUpdateFlow(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return successDryRun(okResult()), nil
	}}
	mutate := &fakeMutateConn{receipt: &Receipt{TxHash: "0x01", BlockNumber: 10}}
	adapter := NewAdapterWithConns(testContract, query, mutate)
	ctx := context.Background()

	_, err := adapter.Revoke(ctx, 5, "superseded by v2", testSigner())
	require.NoError(t, err)
	assert.Equal(t, selector(msgRevokePassport), mutate.calls[0].InputData[:4])

	_, err = adapter.UpdateDataset(ctx, 5, "ipfs://y", bytes.Repeat([]byte{2}, 32), "application/vc+jwt", nil, testSigner())
	require.NoError(t, err)
	assert.Equal(t, selector(msgUpdateDataset), mutate.calls[1].InputData[:4])

	// Update with empty uri is rejected locally.
	_, err = adapter.UpdateDataset(ctx, 5, "", bytes.Repeat([]byte{2}, 32), "application/vc+jwt", nil, testSigner())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAlreadyRevokedSurfacesFromDryRun(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return &CallResult{
			Reverted: true,
			Data:     []byte{0, 1, byte(ContractErrAlreadyRevoked)},
		}, nil
	}}
	adapter := NewAdapterWithConns(testContract, query, &fakeMutateConn{})

	_, err := adapter.Revoke(context.Background(), 5, "", testSigner())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AlreadyRevoked")
}

func TestTransferEncodesRecipientFirst(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return successDryRun(okResult()), nil
	}}
	mutate := &fakeMutateConn{receipt: &Receipt{TxHash: "0x01", BlockNumber: 10}}
	adapter := NewAdapterWithConns(testContract, query, mutate)

	to := Address{0xbb, 0xcc}
	_, err := adapter.Transfer(context.Background(), 5, to.Hex(), testSigner())
	require.NoError(t, err)

	input := mutate.calls[0].InputData
	assert.Equal(t, selector(msgTransfer), input[:4])
	assert.Equal(t, to[:], input[4:24], "recipient precedes token id on the wire")
}

func TestOwnerOfAndBalanceOf(t *testing.T) {
	owner := Address{0xcc}
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		switch {
		case bytes.Equal(req.InputData[:4], selector(msgOwnerOf)):
			return successDryRun(okReturn(append([]byte{1}, owner[:]...)...)), nil
		case bytes.Equal(req.InputData[:4], selector(msgBalanceOf)):
			return successDryRun(okReturn(u128Bytes(t, 3)...)), nil
		}
		return nil, assert.AnError
	}}
	adapter := NewAdapterWithConns(testContract, query, nil)
	ctx := context.Background()

	got, err := adapter.OwnerOf(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	balance, err := adapter.BalanceOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), balance)
}

func TestVersionHistoryQueries(t *testing.T) {
	entries := []VersionHistory{
		{Version: 1, DatasetURI: "ipfs://v1", PayloadHash: Hash{1}, DatasetType: "application/vc+jwt", UpdatedAt: 10, UpdatedBy: Address{0xaa}},
		{Version: 2, DatasetURI: "ipfs://v2", PayloadHash: Hash{2}, DatasetType: "application/vc+jwt", UpdatedAt: 20, UpdatedBy: Address{0xaa}},
	}
	listBytes := encodeBytes(t, func(enc scale.Encoder) error {
		if err := encodeCompact(enc, uint64(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := e.Encode(enc); err != nil {
				return err
			}
		}
		return nil
	})

	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		switch {
		case bytes.Equal(req.InputData[:4], selector(msgGetVersionHistory)),
			bytes.Equal(req.InputData[:4], selector(msgGetRecentVersions)):
			return successDryRun(okReturn(listBytes...)), nil
		case bytes.Equal(req.InputData[:4], selector(msgGetVersion)):
			entry := encodeBytes(t, entries[1].Encode)
			return successDryRun(okReturn(append([]byte{1}, entry...)...)), nil
		}
		return nil, assert.AnError
	}}
	adapter := NewAdapterWithConns(testContract, query, nil)
	ctx := context.Background()

	history, err := adapter.GetVersionHistory(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, entries, history)

	recent, err := adapter.GetRecentVersions(ctx, 5, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	entry, err := adapter.GetVersion(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, entries[1], *entry)
}

func TestFindTokenBySubjectID(t *testing.T) {
	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return successDryRun(okReturn(append([]byte{1}, u128Bytes(t, 11)...)...)), nil
	}}
	adapter := NewAdapterWithConns(testContract, query, nil)

	token, err := adapter.FindTokenBySubjectID(context.Background(), SubjectHash("urn:product:battery-7", "B-1", ""))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), token)
}

func TestHasAuthority(t *testing.T) {
	account := AccountID{9, 9, 9}
	issuer := BridgeAccount(account)

	record := PassportRecord{
		TokenID:     5,
		Issuer:      issuer,
		DatasetURI:  "ipfs://x",
		PayloadHash: Hash{1},
		DatasetType: "application/vc+jwt",
		Status:      StatusActive,
		Granularity: GranularityItem,
	}
	encoded := encodeBytes(t, record.Encode)

	query := &fakeQueryConn{handler: func(req *CallRequest) (*CallResult, error) {
		return successDryRun(okReturn(append([]byte{1}, encoded...)...)), nil
	}}
	adapter := NewAdapterWithConns(testContract, query, nil)
	ctx := context.Background()

	ok, err := adapter.HasAuthority(ctx, 5, "0x"+hex.EncodeToString(account[:]))
	require.NoError(t, err)
	assert.True(t, ok, "the 32-byte account bridges to the issuer address")

	other := AccountID{1}
	ok, err = adapter.HasAuthority(ctx, 5, "0x"+hex.EncodeToString(other[:]))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnwrapLayers(t *testing.T) {
	payload, err := unwrapReturn([]byte{0, 42})
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, payload)

	_, err = unwrapReturn([]byte{1})
	assert.ErrorIs(t, err, ErrDecodeFailed)

	payload, err = unwrapResult([]byte{0, 42})
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, payload)

	_, err = unwrapResult([]byte{1, byte(ContractErrTokenNotFound)})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = unwrapResult([]byte{1, byte(ContractErrPassportRevoked)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PassportRevoked")
}

func TestScanContractEmitted(t *testing.T) {
	const palletIdx, eventIdx = 40, 2
	contract := Address{0xde, 0xad, 0xbe, 0xef}

	event := encodeBytes(t, PassportRegisteredEvent{
		TokenID:     7,
		Issuer:      Address{0xaa},
		DatasetURI:  "ipfs://x",
		PayloadHash: Hash{1},
		DatasetType: "application/vc+jwt",
		Version:     1,
		CreatedAt:   12,
	}.Encode)
	payload := encodeBytes(t, func(enc scale.Encoder) error { return enc.Encode(event) })

	// Unrelated event bytes surround the target record; only the
	// pallet/event/contract signature is extracted.
	raw := []byte{0x00, 0x09, 0x01, 0xcc}
	raw = append(raw, palletIdx, eventIdx)
	raw = append(raw, contract[:]...)
	raw = append(raw, payload...)
	raw = append(raw, 0x00) // empty topics vector

	payloads := scanContractEmitted(raw, palletIdx, eventIdx, contract)
	require.Len(t, payloads, 1)

	decoded, err := DecodePassportRegistered(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.TokenID)

	// A different contract's emissions are not picked up.
	assert.Empty(t, scanContractEmitted(raw, palletIdx, eventIdx, Address{0x01}))
	assert.Empty(t, scanContractEmitted(raw, palletIdx+1, eventIdx, contract))
}

func TestContractEmittedIndicesRequireV14Metadata(t *testing.T) {
	_, _, err := contractEmittedIndices(&types.Metadata{})
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

type deadlineCheckConn struct {
	sawDeadline bool
	deadline    time.Time
	result      *CallResult
}

func (c *deadlineCheckConn) Call(ctx context.Context, _ *CallRequest) (*CallResult, error) {
	c.deadline, c.sawDeadline = ctx.Deadline()
	return c.result, nil
}

func TestBareContextGetsDefaultDeadline(t *testing.T) {
	conn := &deadlineCheckConn{result: successDryRun(okReturn(u128Bytes(t, 8)...))}
	adapter := NewAdapterWithConns(testContract, conn, nil)

	_, err := adapter.NextTokenID(context.Background())
	require.NoError(t, err)
	require.True(t, conn.sawDeadline, "bare contexts are bounded by the default timeout")
	assert.WithinDuration(t, time.Now().Add(DefaultCallTimeout), conn.deadline, 5*time.Second)
}

func TestCallerDeadlineIsPreserved(t *testing.T) {
	conn := &deadlineCheckConn{result: successDryRun(okReturn(u128Bytes(t, 8)...))}
	adapter := NewAdapterWithConns(testContract, conn, nil)

	want := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), want)
	defer cancel()

	_, err := adapter.NextTokenID(ctx)
	require.NoError(t, err)
	require.True(t, conn.sawDeadline)
	assert.Equal(t, want, conn.deadline)
}

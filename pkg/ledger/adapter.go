package ledger

import (
	"context"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// Config locates the contract and its node endpoints. The two URLs may
// be the same node; they are dialed independently because reads and
// writes go through different runtime surfaces.
type Config struct {
	// QueryURL is the websocket endpoint for dry-run queries.
	QueryURL string

	// MutateURL is the websocket endpoint for signed submissions.
	MutateURL string

	// Contract is the deployed contract's address.
	Contract Address
}

// Adapter executes passport operations against the on-chain contract.
// Connections are dialed lazily on first use and cached for the
// adapter's lifetime.
type Adapter struct {
	cfg Config

	mu     sync.Mutex
	query  QueryConn
	mutate MutateConn

	dialQuery  func() (QueryConn, error)
	dialMutate func() (MutateConn, error)
}

// NewAdapter creates an adapter that dials real node connections.
func NewAdapter(cfg Config) *Adapter {
	a := &Adapter{cfg: cfg}
	a.dialQuery = func() (QueryConn, error) { return dialQueryConn(cfg.QueryURL) }
	a.dialMutate = func() (MutateConn, error) { return dialMutateConn(cfg.MutateURL) }
	return a
}

// NewAdapterWithConns creates an adapter over pre-built connections.
// Used by tests and by callers that manage connections themselves.
func NewAdapterWithConns(contract Address, query QueryConn, mutate MutateConn) *Adapter {
	return &Adapter{
		cfg:    Config{Contract: contract},
		query:  query,
		mutate: mutate,
	}
}

func (a *Adapter) queryConn() (QueryConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.query != nil {
		return a.query, nil
	}
	conn, err := a.dialQuery()
	if err != nil {
		return nil, WrapError(ErrCodeConnectFailed, "failed to dial query endpoint", err)
	}
	a.query = conn
	return conn, nil
}

func (a *Adapter) mutateConn() (MutateConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mutate != nil {
		return a.mutate, nil
	}
	conn, err := a.dialMutate()
	if err != nil {
		return nil, WrapError(ErrCodeConnectFailed, "failed to dial mutate endpoint", err)
	}
	a.mutate = conn
	return conn, nil
}

// dryRun executes the call against the read runtime and converts
// failures into coded errors. Decoded contract errors take priority
// over generic revert diagnostics.
func (a *Adapter) dryRun(ctx context.Context, origin AccountID, input []byte) (*CallResult, error) {
	conn, err := a.queryConn()
	if err != nil {
		return nil, err
	}

	result, err := conn.Call(ctx, &CallRequest{
		Origin:    origin,
		Dest:      a.cfg.Contract,
		InputData: input,
	})
	if err != nil {
		return nil, WrapError(ErrCodeConnectFailed, "dry-run call failed", err)
	}

	if result.DispatchErr != nil {
		return nil, NewError(ErrCodeDispatchFailed, result.DispatchErr.String())
	}
	if result.Reverted {
		// A reverting ink! message still encodes its Result error; decode
		// it for the diagnostic when possible.
		if payload, err := unwrapReturn(result.Data); err == nil {
			if _, cerr := unwrapResult(payload); cerr != nil {
				return nil, cerr
			}
		}
		return nil, NewError(ErrCodeDryRunReverted, "contract reverted without a decodable reason")
	}
	return result, nil
}

// callContext applies DefaultCallTimeout when the caller's context
// carries no deadline.
func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultCallTimeout)
}

// call dry-runs a read-only message and returns the unwrapped return
// payload.
func (a *Adapter) call(ctx context.Context, input []byte) ([]byte, error) {
	ctx, cancel := callContext(ctx)
	defer cancel()

	result, err := a.dryRun(ctx, AccountID{}, input)
	if err != nil {
		return nil, err
	}
	payload, err := unwrapReturn(result.Data)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// submit dry-runs a mutating message, derives gas and storage-deposit
// ceilings from the estimate, then signs and submits. Once signed and
// sent the call always resolves to a definite outcome; there is no
// retry on dispatch failure because fees are already spent.
func (a *Adapter) submit(ctx context.Context, input []byte, signer Signer) (*Receipt, error) {
	ctx, cancel := callContext(ctx)
	defer cancel()

	var origin AccountID
	copy(origin[:], signer.PublicKey)

	dry, err := a.dryRun(ctx, origin, input)
	if err != nil {
		return nil, err
	}
	if payload, err := unwrapReturn(dry.Data); err == nil {
		if _, cerr := unwrapResult(payload); cerr != nil {
			return nil, cerr
		}
	}

	conn, err := a.mutateConn()
	if err != nil {
		return nil, err
	}

	gas := dry.GasRequired.withMargin()
	deposit := dry.StorageDeposit + dry.StorageDeposit/4
	receipt, err := conn.Submit(ctx, &CallRequest{
		Origin:              origin,
		Dest:                a.cfg.Contract,
		GasLimit:            &gas,
		StorageDepositLimit: &deposit,
		InputData:           input,
	}, signer)
	if err != nil {
		return nil, WrapError(ErrCodeSubmitFailed, "failed to submit call", err)
	}
	return receipt, nil
}

// Register anchors a new passport and returns its token id. The token
// id is read from the PassportRegistered event; when the event cannot
// be decoded the adapter falls back to the contract's sequential
// counter, inferring the id as counter − 1.
func (a *Adapter) Register(ctx context.Context, reg Registration, signer Signer) (*RegisterResult, error) {
	if reg.DatasetURI == "" || reg.DatasetType == "" {
		return nil, NewError(ErrCodeInvalidInput, "dataset uri and dataset type are required")
	}
	payloadHash, err := NormalizeHash(reg.PayloadHash)
	if err != nil {
		return nil, err
	}
	subjectHash, err := normalizeOptionalHash(reg.SubjectIDHash)
	if err != nil {
		return nil, err
	}

	args, err := scaleEncode(
		func(enc scale.Encoder) error { return enc.Encode(reg.DatasetURI) },
		payloadHash.Encode,
		func(enc scale.Encoder) error { return enc.Encode(reg.DatasetType) },
		reg.Granularity.Encode,
		func(enc scale.Encoder) error { return encodeOptionHash(enc, subjectHash) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode registration", err)
	}

	receipt, err := a.submit(ctx, append(selector(msgRegisterPassport), args...), signer)
	if err != nil {
		return nil, err
	}

	tokenID, ok := registeredTokenFromEvents(receipt.Events)
	if !ok {
		next, err := a.NextTokenID(ctx)
		if err != nil {
			return nil, WrapError(ErrCodeDecodeFailed,
				"registration included but token id could not be determined", err)
		}
		if next == 0 {
			return nil, NewError(ErrCodeDecodeFailed,
				"registration included but the token counter is still zero")
		}
		tokenID = next - 1
	}

	return &RegisterResult{
		TokenID:     tokenID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	}, nil
}

// Get reads the current anchor record for a token.
func (a *Adapter) Get(ctx context.Context, tokenID uint64) (*PassportRecord, error) {
	input, err := messageWithToken(msgGetPassport, tokenID)
	if err != nil {
		return nil, err
	}
	payload, err := a.call(ctx, input)
	if err != nil {
		return nil, err
	}

	dec := scaleDecoder(payload)
	some, err := dec.ReadOneByte()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode passport option", err)
	}
	if some == 0 {
		return nil, WrapError(ErrCodeNotFound, "no passport for token", nil)
	}

	record := &PassportRecord{}
	if err := record.Decode(*dec); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode passport record", err)
	}
	return record, nil
}

// UpdateDataset replaces the anchored dataset (issuer-only on chain).
// Granularity is immutable and not part of the update.
func (a *Adapter) UpdateDataset(ctx context.Context, tokenID uint64, datasetURI string, payloadHash any, datasetType string, subjectIDHash any, signer Signer) (*SubmitResult, error) {
	if datasetURI == "" || datasetType == "" {
		return nil, NewError(ErrCodeInvalidInput, "dataset uri and dataset type are required")
	}
	hash, err := NormalizeHash(payloadHash)
	if err != nil {
		return nil, err
	}
	subjectHash, err := normalizeOptionalHash(subjectIDHash)
	if err != nil {
		return nil, err
	}

	args, err := scaleEncode(
		func(enc scale.Encoder) error { return encodeU128(enc, tokenID) },
		func(enc scale.Encoder) error { return enc.Encode(datasetURI) },
		hash.Encode,
		func(enc scale.Encoder) error { return enc.Encode(datasetType) },
		func(enc scale.Encoder) error { return encodeOptionHash(enc, subjectHash) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode update", err)
	}

	receipt, err := a.submit(ctx, append(selector(msgUpdateDataset), args...), signer)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber}, nil
}

// Revoke marks a passport revoked (issuer-only on chain). The reason is
// recorded in the event stream, not in storage.
func (a *Adapter) Revoke(ctx context.Context, tokenID uint64, reason string, signer Signer) (*SubmitResult, error) {
	var reasonOpt *string
	if reason != "" {
		reasonOpt = &reason
	}

	args, err := scaleEncode(
		func(enc scale.Encoder) error { return encodeU128(enc, tokenID) },
		func(enc scale.Encoder) error { return encodeOptionString(enc, reasonOpt) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode revocation", err)
	}

	receipt, err := a.submit(ctx, append(selector(msgRevokePassport), args...), signer)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber}, nil
}

// Transfer moves token ownership. Issuer authority is not affected.
func (a *Adapter) Transfer(ctx context.Context, tokenID uint64, to string, signer Signer) (*SubmitResult, error) {
	dest, err := ResolveAddress(to)
	if err != nil {
		return nil, err
	}

	args, err := scaleEncode(
		dest.Encode,
		func(enc scale.Encoder) error { return encodeU128(enc, tokenID) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode transfer", err)
	}

	receipt, err := a.submit(ctx, append(selector(msgTransfer), args...), signer)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber}, nil
}

// OwnerOf returns the current owner of a token.
func (a *Adapter) OwnerOf(ctx context.Context, tokenID uint64) (Address, error) {
	input, err := messageWithToken(msgOwnerOf, tokenID)
	if err != nil {
		return Address{}, err
	}
	payload, err := a.call(ctx, input)
	if err != nil {
		return Address{}, err
	}

	dec := scaleDecoder(payload)
	some, err := dec.ReadOneByte()
	if err != nil {
		return Address{}, WrapError(ErrCodeDecodeFailed, "failed to decode owner option", err)
	}
	if some == 0 {
		return Address{}, WrapError(ErrCodeNotFound, "no owner for token", nil)
	}

	var owner Address
	if err := owner.Decode(*dec); err != nil {
		return Address{}, WrapError(ErrCodeDecodeFailed, "failed to decode owner", err)
	}
	return owner, nil
}

// BalanceOf returns how many tokens an address owns.
func (a *Adapter) BalanceOf(ctx context.Context, owner Address) (uint64, error) {
	input, err := scaleEncode(owner.Encode)
	if err != nil {
		return 0, WrapError(ErrCodeInvalidInput, "failed to encode owner", err)
	}
	payload, err := a.call(ctx, append(selector(msgBalanceOf), input...))
	if err != nil {
		return 0, err
	}
	return decodeU128(*scaleDecoder(payload))
}

// NextTokenID returns the contract's sequential token counter.
func (a *Adapter) NextTokenID(ctx context.Context) (uint64, error) {
	payload, err := a.call(ctx, selector(msgNextTokenID))
	if err != nil {
		return 0, err
	}
	return decodeU128(*scaleDecoder(payload))
}

// GetVersion reads one version history entry.
func (a *Adapter) GetVersion(ctx context.Context, tokenID uint64, version uint32) (*VersionHistory, error) {
	input, err := scaleEncode(
		func(enc scale.Encoder) error { return encodeU128(enc, tokenID) },
		func(enc scale.Encoder) error { return enc.Encode(version) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode version query", err)
	}
	payload, err := a.call(ctx, append(selector(msgGetVersion), input...))
	if err != nil {
		return nil, err
	}

	dec := scaleDecoder(payload)
	some, err := dec.ReadOneByte()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode version option", err)
	}
	if some == 0 {
		return nil, WrapError(ErrCodeNotFound, "no such version", nil)
	}

	entry := &VersionHistory{}
	if err := entry.Decode(*dec); err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode version entry", err)
	}
	return entry, nil
}

// GetVersionHistory reads the full append-only version trail of a token.
func (a *Adapter) GetVersionHistory(ctx context.Context, tokenID uint64) ([]VersionHistory, error) {
	input, err := messageWithToken(msgGetVersionHistory, tokenID)
	if err != nil {
		return nil, err
	}
	payload, err := a.call(ctx, input)
	if err != nil {
		return nil, err
	}
	return decodeVersionList(payload)
}

// GetRecentVersions reads the most recent version entries, newest last.
func (a *Adapter) GetRecentVersions(ctx context.Context, tokenID uint64, limit uint32) ([]VersionHistory, error) {
	input, err := scaleEncode(
		func(enc scale.Encoder) error { return encodeU128(enc, tokenID) },
		func(enc scale.Encoder) error { return enc.Encode(limit) },
	)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode version query", err)
	}
	payload, err := a.call(ctx, append(selector(msgGetRecentVersions), input...))
	if err != nil {
		return nil, err
	}
	return decodeVersionList(payload)
}

// FindTokenBySubjectID resolves a canonical subject hash to its token.
// Best-effort reverse lookup: the mapping tracks the latest registration
// for a subject.
func (a *Adapter) FindTokenBySubjectID(ctx context.Context, subjectIDHash any) (uint64, error) {
	hash, err := NormalizeHash(subjectIDHash)
	if err != nil {
		return 0, err
	}
	input, err := scaleEncode(hash.Encode)
	if err != nil {
		return 0, WrapError(ErrCodeInvalidInput, "failed to encode subject hash", err)
	}
	payload, err := a.call(ctx, append(selector(msgFindTokenBySubjectID), input...))
	if err != nil {
		return 0, err
	}

	dec := scaleDecoder(payload)
	some, err := dec.ReadOneByte()
	if err != nil {
		return 0, WrapError(ErrCodeDecodeFailed, "failed to decode token option", err)
	}
	if some == 0 {
		return 0, WrapError(ErrCodeNotFound, "no token for subject", nil)
	}
	return decodeU128(*dec)
}

// HasAuthority reports whether the account is the issuer authority for
// the token. Accepts a 20-byte address or a 32-byte account, bridging
// the latter.
func (a *Adapter) HasAuthority(ctx context.Context, tokenID uint64, account string) (bool, error) {
	addr, err := ResolveAddress(account)
	if err != nil {
		return false, err
	}
	record, err := a.Get(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return record.Issuer == addr, nil
}

func messageWithToken(label string, tokenID uint64) ([]byte, error) {
	args, err := scaleEncode(func(enc scale.Encoder) error { return encodeU128(enc, tokenID) })
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, "failed to encode token id", err)
	}
	return append(selector(label), args...), nil
}

func decodeVersionList(payload []byte) ([]VersionHistory, error) {
	dec := scaleDecoder(payload)
	length, err := dec.DecodeUintCompact()
	if err != nil {
		return nil, WrapError(ErrCodeDecodeFailed, "failed to decode version list length", err)
	}

	entries := make([]VersionHistory, 0, length.Uint64())
	for i := uint64(0); i < length.Uint64(); i++ {
		var entry VersionHistory
		if err := entry.Decode(*dec); err != nil {
			return nil, WrapError(ErrCodeDecodeFailed, "failed to decode version entry", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

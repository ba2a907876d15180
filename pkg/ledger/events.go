package ledger

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// PassportRegisteredEvent is the contract event emitted on registration.
type PassportRegisteredEvent struct {
	TokenID     uint64
	Issuer      Address
	DatasetURI  string
	PayloadHash Hash
	DatasetType string
	Version     uint32
	CreatedAt   uint32
}

func (e *PassportRegisteredEvent) decode(dec scale.Decoder) error {
	var err error
	if e.TokenID, err = decodeU128(dec); err != nil {
		return err
	}
	if err = e.Issuer.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&e.DatasetURI); err != nil {
		return err
	}
	if err = e.PayloadHash.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&e.DatasetType); err != nil {
		return err
	}
	if err = dec.Decode(&e.Version); err != nil {
		return err
	}
	return dec.Decode(&e.CreatedAt)
}

// Encode implements scale.Encodeable. Used by fakes in tests; the
// contract produces this layout on chain.
func (e PassportRegisteredEvent) Encode(enc scale.Encoder) error {
	if err := encodeU128(enc, e.TokenID); err != nil {
		return err
	}
	if err := e.Issuer.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(e.DatasetURI); err != nil {
		return err
	}
	if err := e.PayloadHash.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(e.DatasetType); err != nil {
		return err
	}
	if err := enc.Encode(e.Version); err != nil {
		return err
	}
	return enc.Encode(e.CreatedAt)
}

// DecodePassportRegistered attempts to decode a raw contract event
// payload as a PassportRegistered event. Payloads may carry a one-byte
// variant prefix depending on how the emitting runtime wraps contract
// events; both layouts are tried.
func DecodePassportRegistered(data []byte) (*PassportRegisteredEvent, error) {
	event := &PassportRegisteredEvent{}
	if err := event.decode(*scaleDecoder(data)); err == nil {
		return event, nil
	}

	if len(data) > 1 {
		event = &PassportRegisteredEvent{}
		if err := event.decode(*scaleDecoder(data[1:])); err == nil {
			return event, nil
		}
	}
	return nil, NewError(ErrCodeDecodeFailed, "payload is not a PassportRegistered event")
}

// registeredTokenFromEvents scans receipt events for a decodable
// PassportRegistered payload.
func registeredTokenFromEvents(events [][]byte) (uint64, bool) {
	for _, data := range events {
		if event, err := DecodePassportRegistered(data); err == nil {
			return event.TokenID, true
		}
	}
	return 0, false
}

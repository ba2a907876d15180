package ledger

import (
	"golang.org/x/crypto/blake2b"
)

// Contract message labels. Selectors are the first four bytes of the
// blake2b-256 hash of the label, per the ink! ABI.
const (
	msgRegisterPassport     = "register_passport"
	msgGetPassport          = "get_passport"
	msgUpdateDataset        = "update_dataset"
	msgRevokePassport       = "revoke_passport"
	msgTransfer             = "transfer"
	msgOwnerOf              = "owner_of"
	msgBalanceOf            = "balance_of"
	msgNextTokenID          = "next_token_id"
	msgGetVersion           = "get_version"
	msgGetVersionHistory    = "get_version_history"
	msgGetRecentVersions    = "get_recent_versions"
	msgFindTokenBySubjectID = "find_token_by_subject_id"
)

// selector returns the 4-byte ink! selector for a message label.
func selector(label string) []byte {
	sum := blake2b.Sum256([]byte(label))
	return sum[:4]
}

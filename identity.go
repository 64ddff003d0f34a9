// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhesurvey holds the types shared by the FHE survey client
// packages: coded errors and the session identity that in-flight
// operations are validated against.
package fhesurvey

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// SessionIdentity is the ambient identity an in-flight operation was started
// under. An operation is stale once the live identity no longer equals the
// captured one.
type SessionIdentity struct {
	ChainID       uint64
	SignerAddress common.Address
}

// IsZero reports whether no wallet is connected.
func (id SessionIdentity) IsZero() bool {
	return id.ChainID == 0 && id.SignerAddress == (common.Address{})
}

func (id SessionIdentity) String() string {
	return fmt.Sprintf("chain=%d signer=%s", id.ChainID, id.SignerAddress.Hex())
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

// Status is reported while an instance is being created.
type Status string

const (
	StatusSDKLoading      Status = "sdk-loading"
	StatusSDKLoaded       Status = "sdk-loaded"
	StatusSDKInitializing Status = "sdk-initializing"
	StatusSDKInitialized  Status = "sdk-initialized"
	StatusCreating        Status = "creating"
)

// StatusFunc receives status changes in order.
type StatusFunc func(Status)

// Notify calls f if it is set.
func (f StatusFunc) Notify(s Status) {
	if f != nil {
		f(s)
	}
}

// File: rpc/messages.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/momentics/hioload-rpc/codec"
)

func init() {
	codec.Register(&RPC{})
	codec.Register(&ExtendedRPC{})
	codec.Register(&RR{})
	codec.Register(Method{})
	codec.Register(uuid.UUID{})
}

// RPC is a call request. ID is unique among outstanding calls of one
// transport and is echoed by exactly one RR.
type RPC struct {
	ID                 int32
	MethodID           int32
	Identifier         any
	Args               []any
	DeletedIdentifiers []any
}

func (r *RPC) String() string {
	return fmt.Sprintf("RPC{id=%d, method=%d, identifier=%v, args=%d}", r.ID, r.MethodID, r.Identifier, len(r.Args))
}

// ExtendedRPC is an RPC that also carries the serialized method descriptor
// for MethodID, sent the first time a method is used on a connection.
type ExtendedRPC struct {
	RPC
	SerializedMethod any
}

func (r *ExtendedRPC) String() string {
	return fmt.Sprintf("ExtendedRPC{id=%d, method=%d=%v}", r.ID, r.MethodID, r.SerializedMethod)
}

// RR is the response to the RPC with the same ID.
type RR struct {
	ID                 int32
	Response           any
	Exception          *RemoteError
	RemovedIdentifiers []any
}

func (r *RR) String() string {
	return fmt.Sprintf("RR{id=%d, exception=%v}", r.ID, r.Exception)
}

// RemoteError carries a failure raised on the peer. Error returns the peer's
// message unchanged: the full wrapped chain, as Go callers expect. Cause and
// Kind describe the innermost error of that chain.
type RemoteError struct {
	Message string
	Cause   string
	Kind    string
}

func (e *RemoteError) Error() string { return e.Message }

// newRemoteError captures err for the wire. A RemoteError raised by a nested
// call is forwarded as is.
func newRemoteError(err error) *RemoteError {
	if re, ok := err.(*RemoteError); ok {
		return re
	}
	root := rootCause(err)
	if re, ok := root.(*RemoteError); ok {
		return &RemoteError{Message: err.Error(), Cause: re.Cause, Kind: re.Kind}
	}
	return &RemoteError{Message: err.Error(), Cause: root.Error(), Kind: fmt.Sprintf("%T", root)}
}

// rootCause follows the errors.Unwrap chain to its end. A RemoteError from
// a nested call ends the walk so its own cause is kept.
func rootCause(err error) error {
	for {
		if _, ok := err.(*RemoteError); ok {
			return err
		}
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

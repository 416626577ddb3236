// File: rpc/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session key exchange that upgrades a cleartext connection to AES-GCM
// without reconnecting. The client sends an RSA public key in clear; the
// server answers with a fresh session key sealed to that key, then both
// sides switch to the session key.

package rpc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/codec"
	"go.uber.org/zap"
)

// HandshakeKeyBits is the RSA modulus size used by Handshake.
const HandshakeKeyBits = 2048

// MethodHandshake is the key exchange method, served on the bean factory.
var MethodHandshake = NewMethod("rpc.Handshake", "Exchange", "[]byte")

func cipherOf(c codec.StatefulStreamCodec) (*codec.CipherCodec, error) {
	cc, ok := codec.Find[*codec.CipherCodec](c)
	if !ok {
		return nil, fmt.Errorf("connection codec has no cipher layer: %w", api.ErrCipher)
	}
	return cc, nil
}

// RegisterHandshake adds the server half of the exchange to t. The server
// must also run HandshakeAnalyzer and use a codec with a cipher layer.
func RegisterHandshake(t *MethodTable) error {
	return t.RegisterContext(MethodHandshake, func(ctx *CallContext, _ any, args []any) (any, error) {
		der, err := Arg[[]byte](args, 0)
		if err != nil {
			return nil, err
		}
		pub, err := x509.ParsePKCS1PublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("client key: %w", err)
		}
		cc, err := cipherOf(ctx.Codec())
		if err != nil {
			return nil, err
		}
		key := make([]byte, codec.SessionKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		aead, err := codec.NewAESGCM(key)
		if err != nil {
			return nil, err
		}
		// The reply is queued after this task, so it is sealed to pub. The
		// client only sends under the session key once it has the reply.
		swap := func() { cc.InitCipher(codec.NewHybridEncrypter(pub), codec.NewOpener(aead)) }
		if err := ctx.Client.Client().Execute(swap); err != nil {
			return nil, err
		}
		return key, nil
	})
}

// HandshakeAnalyzer switches the sending side of a server connection to the
// session key once the exchange reply has been queued.
func HandshakeAnalyzer(c *ExecutingClient, inv Invocation) {
	if inv.Err != nil || inv.Method.Key() != MethodHandshake.Key() {
		return
	}
	key, ok := inv.Result.([]byte)
	if !ok {
		return
	}
	cc, err := cipherOf(c.Client().Codec())
	if err != nil {
		return
	}
	aead, err := codec.NewAESGCM(key)
	if err != nil {
		c.log.Error("session key rejected", zap.Error(err))
		return
	}
	if err := c.Client().Execute(func() { cc.InitCipher(codec.NewSealer(aead), codec.NewOpener(aead)) }); err != nil {
		c.log.Warn("cipher switch dropped", zap.Error(err))
	}
}

// Handshake runs the client half of the exchange on t. It must complete
// before other calls are made on t.
func Handshake(ctx context.Context, t *DelegationTransport) error {
	cc, err := cipherOf(t.Client().Codec())
	if err != nil {
		return err
	}
	priv, err := rsa.GenerateKey(rand.Reader, HandshakeKeyBits)
	if err != nil {
		return err
	}
	cc.InitCipher(nil, codec.NewHybridDecrypter(priv))
	v, err := t.Invoke(ctx, nil, MethodHandshake, x509.MarshalPKCS1PublicKey(&priv.PublicKey))
	if err != nil {
		cc.InitCipher(nil, nil)
		return fmt.Errorf("handshake: %w", err)
	}
	key, ok := v.([]byte)
	if !ok {
		cc.InitCipher(nil, nil)
		return fmt.Errorf("handshake returned %T: %w", v, api.ErrCipher)
	}
	aead, err := codec.NewAESGCM(key)
	if err != nil {
		return err
	}
	cc.InitCipher(codec.NewSealer(aead), codec.NewOpener(aead))
	return nil
}

package bitcoin

import (
	"bytes"
)

// ScriptPatternKind identifies the shape matched by ClassifyUnlockingScript.
type ScriptPatternKind uint8

const (
	ScriptPatternOther ScriptPatternKind = iota
	ScriptPatternSignature
)

// ScriptPattern is the result of classifying an unlocking script. Kind is
// ScriptPatternSignature only when the script is exactly two pushes, a DER-shaped signature
// followed by a public-key-shaped push; otherwise it is ScriptPatternOther and Signature/PubKey
// are left zero.
type ScriptPattern struct {
	Kind      ScriptPatternKind
	Signature []byte // raw script push bytes, hash type byte still attached
	PubKey    []byte // raw script push bytes
}

// ClassifyUnlockingScript inspects an unlocking script for the standard pay-to-public-key-hash
// shape: a single push of a DER-encoded signature (plus trailing hash-type byte) followed by a
// single push of a public key, compressed or uncompressed, with nothing else in the script.
func ClassifyUnlockingScript(script []byte) ScriptPattern {
	buf := bytes.NewReader(script)

	_, sig, err := ParsePushDataScript(buf)
	if err != nil || !looksLikeSignaturePush(sig) {
		return ScriptPattern{Kind: ScriptPatternOther}
	}

	_, pubKey, err := ParsePushDataScript(buf)
	if err != nil || !looksLikePublicKeyPush(pubKey) {
		return ScriptPattern{Kind: ScriptPatternOther}
	}

	if buf.Len() != 0 {
		// Extra data after the two pushes; not the simple pattern this engine decodes.
		return ScriptPattern{Kind: ScriptPatternOther}
	}

	return ScriptPattern{Kind: ScriptPatternSignature, Signature: sig, PubKey: pubKey}
}

// looksLikeSignaturePush reports whether b has the shape of a DER signature push plus a trailing
// hash-type byte: a 0x30 header and a length in [8, 73] including that trailing byte. The DER
// structure itself is validated later by SignatureFromScriptBytes; this is a cheap shape filter.
func looksLikeSignaturePush(b []byte) bool {
	return len(b) >= 8 && len(b) <= 73 && b[0] == 0x30
}

// looksLikePublicKeyPush reports whether b has the shape of a secp256k1 public key push, either
// compressed (33 bytes, 0x02/0x03 prefix) or uncompressed (65 bytes, 0x04 prefix).
func looksLikePublicKeyPush(b []byte) bool {
	switch len(b) {
	case PublicKeyCompressedLength:
		return b[0] == 0x02 || b[0] == 0x03
	case PublicKeyUncompressedLength:
		return b[0] == 0x04
	default:
		return false
	}
}

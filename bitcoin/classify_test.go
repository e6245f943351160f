package bitcoin

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func scriptPush(b []byte) []byte {
	if len(b) <= int(OP_MAX_SINGLE_BYTE_PUSH_DATA) {
		return append([]byte{byte(len(b))}, b...)
	}
	return append([]byte{OP_PUSH_DATA_1, byte(len(b))}, b...)
}

func fixtureSignatureBytes() []byte {
	var sig Signature
	sig.R.SetBytes(bytes.Repeat([]byte{0x11}, 31))
	sig.S.SetBytes(bytes.Repeat([]byte{0x22}, 31))
	return append(sig.Bytes(), byte(SigHashAll))
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture : %s", err)
	}
	return b
}

func TestClassifyUnlockingScriptSignaturePattern(t *testing.T) {
	sig := fixtureSignatureBytes()
	key := mustHex(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	script := append(scriptPush(sig), scriptPush(key)...)

	pattern := ClassifyUnlockingScript(script)
	if pattern.Kind != ScriptPatternSignature {
		t.Fatalf("Expected signature pattern, got %v", pattern.Kind)
	}
	if !bytes.Equal(pattern.Signature, sig) {
		t.Fatalf("Signature mismatch")
	}
	if !bytes.Equal(pattern.PubKey, key) {
		t.Fatalf("Public key mismatch")
	}
}

func TestClassifyUnlockingScriptUncompressedKey(t *testing.T) {
	sig := fixtureSignatureBytes()
	key := mustHex(t, "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"+
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	script := append(scriptPush(sig), scriptPush(key)...)

	pattern := ClassifyUnlockingScript(script)
	if pattern.Kind != ScriptPatternSignature {
		t.Fatalf("Expected signature pattern with uncompressed key, got %v", pattern.Kind)
	}
}

func TestClassifyUnlockingScriptOtherPatterns(t *testing.T) {
	compressedKey := mustHex(t, "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")

	t.Run("empty", func(t *testing.T) {
		if got := ClassifyUnlockingScript(nil).Kind; got != ScriptPatternOther {
			t.Fatalf("got %v want Other", got)
		}
	})

	t.Run("only one push", func(t *testing.T) {
		script := scriptPush(fixtureSignatureBytes())
		if got := ClassifyUnlockingScript(script).Kind; got != ScriptPatternOther {
			t.Fatalf("got %v want Other", got)
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		script := append(scriptPush(fixtureSignatureBytes()), scriptPush(compressedKey)...)
		script = append(script, 0xac) // extra OP_CHECKSIG byte
		if got := ClassifyUnlockingScript(script).Kind; got != ScriptPatternOther {
			t.Fatalf("got %v want Other", got)
		}
	})

	t.Run("wrong key length", func(t *testing.T) {
		script := append(scriptPush(fixtureSignatureBytes()), scriptPush([]byte{0x02, 0x01})...)
		if got := ClassifyUnlockingScript(script).Kind; got != ScriptPatternOther {
			t.Fatalf("got %v want Other", got)
		}
	})

	t.Run("not a signature shape", func(t *testing.T) {
		script := append(scriptPush([]byte{0x01, 0x02, 0x03}), scriptPush(compressedKey)...)
		if got := ClassifyUnlockingScript(script).Kind; got != ScriptPatternOther {
			t.Fatalf("got %v want Other", got)
		}
	})
}

package bitcoin

// PublicKeyCompressedLength and PublicKeyUncompressedLength are the two
// encodings a secp256k1 public key push can take in an unlocking script;
// ClassifyUnlockingScript accepts either shape.
const (
	PublicKeyCompressedLength   = 33
	PublicKeyUncompressedLength = 65
)

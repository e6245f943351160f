package bitcoin

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// All signature and public key decoding in this package operates over secp256k1, the curve
// Bitcoin actually uses. A reference implementation that decodes or validates ECDSA signatures
// against NIST P-256 would silently mis-decode every real secp256k1 signature it was given.
var (
	curveS256       = btcec.S256()
	curveS256Params = curveS256.Params()
	curveHalfOrder  = new(big.Int).Rsh(curveS256.N, 1)
)

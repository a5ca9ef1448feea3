package directive

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fnIDDigestLen is deliberately short: the digest only needs to
// disambiguate same-named functions at the same scope path across
// sibling files, not resist collision attacks.
const fnIDDigestLen = 8

// makeFnID builds the stable identifier described in spec.md §4.2:
// scopePath joined with the function's own name, plus a digest of the
// source file path and scope path. It never hashes the function body,
// so editing a body leaves fnID unchanged; renaming the function or
// moving it to a different scope changes it.
func makeFnID(sourceFile string, scopePath []string, name string) string {
	full := append(append([]string{}, scopePath...), name)
	joined := strings.Join(full, ".")
	h := sha256.New()
	h.Write([]byte(sourceFile))
	for _, p := range full {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	digest := hex.EncodeToString(h.Sum(nil))[:fnIDDigestLen]
	return joined + "_" + digest
}

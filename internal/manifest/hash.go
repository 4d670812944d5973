package manifest

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// BlobHash returns the git blob object id of content, i.e. the SHA-1 of
// "blob <size>\0<content>". It matches `git hash-object`.
func BlobHash(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

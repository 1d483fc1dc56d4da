package util

import (
	"fmt"
	"hash/fnv"
)

func ContainsStr(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

// Hash returns a short hex fingerprint of data. Not for anything security related.
func Hash(data []byte) string {
	hasher := fnv.New64a()
	hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum64())
}

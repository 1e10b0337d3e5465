package store

import (
	"net/url"
	"sort"

	"github.com/samber/lo"
)

// S3 sends user metadata as x-amz-meta-* headers, US-ASCII only, 2 KB total.
const maxMetadataSize = 2048

// EncodeMetadata query-escapes every value so newlines and non-ASCII text
// survive as headers, then shortens the longest values until the set fits.
func EncodeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return metadata
	}

	raw := lo.MapValues(metadata, func(v string, _ string) []rune { return []rune(v) })
	keys := lo.Keys(raw)
	sort.Strings(keys)

	for {
		encoded := lo.MapValues(raw, func(v []rune, _ string) string { return url.QueryEscape(string(v)) })

		size, longest := 0, ""
		for _, k := range keys {
			size += len(k) + len(encoded[k])
			if len(encoded[k]) > len(encoded[longest]) {
				longest = k
			}
		}
		if size <= maxMetadataSize || longest == "" {
			return encoded
		}

		r := raw[longest]
		raw[longest] = r[:len(r)*3/4]
	}
}

// DecodeMetadata reverses EncodeMetadata. Values that are not valid escapes
// are returned as stored.
func DecodeMetadata(metadata map[string]string) map[string]string {
	return lo.MapValues(metadata, func(v string, _ string) string {
		decoded, err := url.QueryUnescape(v)
		return lo.Ternary(err == nil, decoded, v)
	})
}

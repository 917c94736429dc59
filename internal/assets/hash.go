package assets

import (
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

// ContentHash returns a short, filename safe digest of data.
func ContentHash(data []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(data)
	return base58.Encode(h.Sum(nil))
}

// expandName fills a filename template. [contenthash] is accepted as a
// synonym of [hash].
func expandName(tmpl, name, hash string) string {
	return strings.NewReplacer(
		"[name]", name,
		"[hash]", hash,
		"[contenthash]", hash,
	).Replace(tmpl)
}

func hasHash(tmpl string) bool {
	return strings.Contains(tmpl, "[hash]") || strings.Contains(tmpl, "[contenthash]")
}

package proof

import (
	"encoding/binary"
	"strings"
)

// CanonicalBytes builds the byte sequence signed by the WOPI client:
//
//	int32 len | access token (UTF-8)
//	int32 len | upper-cased request URL without :443/:44300 (UTF-8)
//	int32 len | int64 timestamp
//
// All integers are big-endian.
func CanonicalBytes(accessToken, requestURL string, timestamp int64) []byte {
	token := []byte(accessToken)
	url := []byte(NormalizeURL(requestURL))

	buf := make([]byte, 0, 4+len(token)+4+len(url)+4+8)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(token)))
	buf = append(buf, token...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(url)))
	buf = append(buf, url...)
	buf = binary.BigEndian.AppendUint32(buf, 8)
	buf = binary.BigEndian.AppendUint64(buf, uint64(timestamp))

	return buf
}

// NormalizeURL strips the default HTTPS ports and upper-cases the URL.
// ":44300" is removed before ":443" so it is not left as "00".
func NormalizeURL(requestURL string) string {
	u := strings.ReplaceAll(requestURL, ":44300", "")
	u = strings.ReplaceAll(u, ":443", "")
	return strings.ToUpper(u)
}

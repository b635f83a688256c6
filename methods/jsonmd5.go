package methods

import (
	"crypto/md5"
	"encoding/hex"
)

// Md5Hex 数据的 md5 十六进制串，用作集合响应的 ETag
func Md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

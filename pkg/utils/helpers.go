package utils

import (
	"encoding/hex"
)

func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

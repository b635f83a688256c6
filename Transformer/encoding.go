package Transformer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func decoderFor(cpg string) *encoding.Decoder {
	switch strings.ToUpper(strings.TrimSpace(cpg)) {
	case "GBK", "936", "CP936":
		return simplifiedchinese.GBK.NewDecoder()
	case "GB18030":
		return simplifiedchinese.GB18030.NewDecoder()
	case "1252", "CP1252", "WINDOWS-1252", "ANSI 1252":
		return charmap.Windows1252.NewDecoder()
	case "ISO-8859-1", "ISO88591", "88591", "LATIN1":
		return charmap.ISO8859_1.NewDecoder()
	}
	return nil
}

// DecodeText 按 .cpg 声明的编码把 DBF 字符串转为 UTF-8。
// 未声明且不是合法 UTF-8 时按 Windows-1252 解码。
func DecodeText(cpg, s string) string {
	d := decoderFor(cpg)
	if d == nil {
		if utf8.ValidString(s) {
			return s
		}
		d = charmap.Windows1252.NewDecoder()
	}
	out, _, err := transform.String(d, s)
	if err != nil {
		return s
	}
	return out
}

// detectEncoding 没有 .cpg 时用属性文本猜测编码，只接受 GB18030 与 Latin 系结果
func detectEncoding(samples []string) string {
	data := []byte(strings.Join(samples, " "))
	if len(bytes.TrimSpace(data)) == 0 || utf8.Valid(data) {
		return ""
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return ""
	}
	switch result.Charset {
	case "GB-18030":
		return "GB18030"
	case "windows-1252", "ISO-8859-1":
		return "1252"
	}
	return ""
}

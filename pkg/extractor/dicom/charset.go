// --- START OF FINAL REVISED FILE pkg/extractor/dicom/charset.go ---
package dicom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// charsetLabels maps Specific Character Set defined terms to the labels
// understood by charset.Lookup.
var charsetLabels = map[string]string{
	"ISO_IR 100":      "iso-8859-1",
	"ISO 2022 IR 100": "iso-8859-1",
	"ISO_IR 101":      "iso-8859-2",
	"ISO 2022 IR 101": "iso-8859-2",
	"ISO_IR 109":      "iso-8859-3",
	"ISO 2022 IR 109": "iso-8859-3",
	"ISO_IR 110":      "iso-8859-4",
	"ISO 2022 IR 110": "iso-8859-4",
	"ISO_IR 144":      "iso-8859-5",
	"ISO 2022 IR 144": "iso-8859-5",
	"ISO_IR 127":      "iso-8859-6",
	"ISO 2022 IR 127": "iso-8859-6",
	"ISO_IR 126":      "iso-8859-7",
	"ISO 2022 IR 126": "iso-8859-7",
	"ISO_IR 138":      "iso-8859-8",
	"ISO 2022 IR 138": "iso-8859-8",
	"ISO_IR 148":      "iso-8859-9",
	"ISO 2022 IR 148": "iso-8859-9",
	"ISO_IR 203":      "iso-8859-15",
	"ISO 2022 IR 203": "iso-8859-15",
	"ISO_IR 166":      "tis-620",
	"ISO 2022 IR 166": "tis-620",
	"ISO_IR 13":       "shift_jis",
	"ISO 2022 IR 13":  "shift_jis",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "euc-kr",
	"ISO 2022 IR 58":  "gb2312",
	"ISO_IR 192":      "utf-8",
	"GB18030":         "gb18030",
	"GBK":             "gbk",
}

// textDecoder converts text values from the dataset's declared character set
// to UTF-8. A nil decoder passes bytes through.
type textDecoder struct {
	enc  encoding.Encoding
	name string
}

// newTextDecoder resolves a Specific Character Set value. With multiple
// values the first non-default term wins. Unknown terms fall back to
// pass-through and are reported with ok=false.
func newTextDecoder(specificCharset string) (d *textDecoder, ok bool) {
	for _, term := range strings.Split(specificCharset, `\`) {
		term = strings.TrimSpace(term)
		if term == "" || term == "ISO_IR 6" || term == "ISO 2022 IR 6" {
			continue
		}
		label, known := charsetLabels[term]
		if !known {
			return nil, false
		}
		if label == "utf-8" {
			return nil, true
		}
		enc, name := charset.Lookup(label)
		if enc == nil {
			return nil, false
		}
		return &textDecoder{enc: enc, name: name}, true
	}
	return nil, true
}

// decode converts raw to UTF-8. Invalid input falls back to the raw bytes
// with invalid sequences replaced.
func (d *textDecoder) decode(raw []byte) string {
	if d == nil || d.enc == nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	out, _, err := transform.Bytes(d.enc.NewDecoder(), raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/charset.go ---

// --- START OF FINAL REVISED FILE pkg/extractor/dicom/values.go ---
package dicom

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// textVRs hold character data. The bool marks VRs that are decoded with the
// dataset's Specific Character Set; the rest are restricted to ASCII.
var textVRs = map[string]bool{
	"AE": false, "AS": false, "CS": false, "DA": false, "DS": false, "DT": false,
	"IS": false, "TM": false, "UI": false, "UR": false,
	"LO": true, "LT": true, "PN": true, "SH": true, "ST": true, "UC": true, "UT": true,
}

// singleValuedVRs never split on backslash.
var singleValuedVRs = map[string]bool{"LT": true, "ST": true, "UT": true, "UR": true}

// longLengthVRs use a 2-byte reserved field and a 4-byte length in explicit VR.
var longLengthVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true, "OW": true,
	"SQ": true, "SV": true, "UC": true, "UN": true, "UR": true, "UT": true, "UV": true,
}

// knownVRs lists every VR accepted in explicit VR streams.
var knownVRs = map[string]bool{
	"AE": true, "AS": true, "AT": true, "CS": true, "DA": true, "DS": true, "DT": true,
	"FD": true, "FL": true, "IS": true, "LO": true, "LT": true, "OB": true, "OD": true,
	"OF": true, "OL": true, "OV": true, "OW": true, "PN": true, "SH": true, "SL": true,
	"SQ": true, "SS": true, "ST": true, "SV": true, "TM": true, "UC": true, "UI": true,
	"UL": true, "UN": true, "UR": true, "US": true, "UT": true, "UV": true,
}

// decodeValue renders an element value as a record value: a string, an
// integer, a float, or nil when empty. Multi-valued elements become a JSON
// array string.
func decodeValue(vr string, raw []byte, order binary.ByteOrder, text *textDecoder) any {
	if len(raw) == 0 {
		return nil
	}
	if charsetAware, ok := textVRs[vr]; ok {
		return decodeText(vr, raw, charsetAware, text)
	}
	switch vr {
	case "US":
		return numbers(raw, 2, func(b []byte) any { return int64(order.Uint16(b)) })
	case "SS":
		return numbers(raw, 2, func(b []byte) any { return int64(int16(order.Uint16(b))) })
	case "UL":
		return numbers(raw, 4, func(b []byte) any { return int64(order.Uint32(b)) })
	case "SL":
		return numbers(raw, 4, func(b []byte) any { return int64(int32(order.Uint32(b))) })
	case "SV":
		return numbers(raw, 8, func(b []byte) any { return int64(order.Uint64(b)) })
	case "UV":
		return numbers(raw, 8, func(b []byte) any { return order.Uint64(b) })
	case "FL":
		return numbers(raw, 4, func(b []byte) any { return float64(math.Float32frombits(order.Uint32(b))) })
	case "FD":
		return numbers(raw, 8, func(b []byte) any { return math.Float64frombits(order.Uint64(b)) })
	case "AT":
		if len(raw)%4 != 0 {
			return hex.EncodeToString(raw)
		}
		tags := make([]string, 0, len(raw)/4)
		for i := 0; i+4 <= len(raw); i += 4 {
			tags = append(tags, NewTag(order.Uint16(raw[i:]), order.Uint16(raw[i+2:])).String())
		}
		return joinValues(tags)
	}
	return hex.EncodeToString(raw)
}

func decodeText(vr string, raw []byte, charsetAware bool, text *textDecoder) any {
	var s string
	if charsetAware {
		s = text.decode(raw)
	} else {
		s = (*textDecoder)(nil).decode(raw)
	}
	s = strings.TrimRight(s, " \x00")
	if vr != "LT" && vr != "ST" && vr != "UT" {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return nil
	}
	if singleValuedVRs[vr] || !strings.Contains(s, `\`) {
		return s
	}
	parts := strings.Split(s, `\`)
	for i := range parts {
		parts[i] = strings.Trim(parts[i], " \x00")
	}
	return joinValues(parts)
}

// numbers decodes fixed-width values. A trailing partial value makes the
// whole element fall back to hex.
func numbers(raw []byte, width int, conv func([]byte) any) any {
	if len(raw)%width != 0 {
		return hex.EncodeToString(raw)
	}
	n := len(raw) / width
	if n == 1 {
		return conv(raw)
	}
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, formatNumber(conv(raw[i*width:(i+1)*width])))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return strconv.Quote(strconv.FormatFloat(n, 'g', -1, 64))
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return ""
}

// joinValues renders a value list as a JSON array with ", " separators.
// A single value is returned as is.
func joinValues(items []string) any {
	if len(items) == 1 {
		return items[0]
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		b, _ := json.Marshal(it)
		quoted[i] = string(b)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/values.go ---

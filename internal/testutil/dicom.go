// --- START OF FINAL REVISED FILE internal/testutil/dicom.go ---
package testutil

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Transfer syntax UIDs accepted by DICOMOptions.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
	DeflatedExplicitVRLE   = "1.2.840.10008.1.2.1.99"
)

// DICOMElement is one data element for the synthetic file builder. Items is
// used for SQ elements; Value otherwise.
type DICOMElement struct {
	Group, Element  uint16
	VR              string
	Value           []byte
	Items           [][]DICOMElement
	UndefinedLength bool
}

// DICOMOptions controls how EncodeDICOM lays out the file.
type DICOMOptions struct {
	// TransferSyntax defaults to explicit VR little endian.
	TransferSyntax string
	// OmitMeta writes the dataset straight after the magic.
	OmitMeta bool
	// TruncateBy drops this many bytes from the end of the file.
	TruncateBy int
}

// Text builds a string element padded to even length.
func Text(group, element uint16, vr, value string) DICOMElement {
	b := []byte(value)
	if len(b)%2 == 1 {
		if vr == "UI" {
			b = append(b, 0)
		} else {
			b = append(b, ' ')
		}
	}
	return DICOMElement{Group: group, Element: element, VR: vr, Value: b}
}

// Uint16s builds a US element. Values are stored little endian; EncodeDICOM
// swaps them for big endian files.
func Uint16s(group, element uint16, values ...uint16) DICOMElement {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return DICOMElement{Group: group, Element: element, VR: "US", Value: b}
}

// Bytes builds a binary element such as OB.
func Bytes(group, element uint16, vr string, value []byte) DICOMElement {
	return DICOMElement{Group: group, Element: element, VR: vr, Value: value}
}

// Sequence builds an SQ element from items.
func Sequence(group, element uint16, undefined bool, items ...[]DICOMElement) DICOMElement {
	return DICOMElement{Group: group, Element: element, VR: "SQ", Items: items, UndefinedLength: undefined}
}

var longVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true, "OW": true,
	"SQ": true, "SV": true, "UC": true, "UN": true, "UR": true, "UT": true, "UV": true,
}

type dicomEncoder struct {
	order    binary.ByteOrder
	explicit bool
}

func (e dicomEncoder) tag(buf *bytes.Buffer, group, element uint16) {
	var b [4]byte
	e.order.PutUint16(b[0:], group)
	e.order.PutUint16(b[2:], element)
	buf.Write(b[:])
}

func (e dicomEncoder) u32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	buf.Write(b[:])
}

func (e dicomEncoder) header(buf *bytes.Buffer, el DICOMElement, length uint32) {
	e.tag(buf, el.Group, el.Element)
	if !e.explicit {
		e.u32(buf, length)
		return
	}
	buf.WriteString(el.VR)
	if longVRs[el.VR] {
		buf.Write([]byte{0, 0})
		e.u32(buf, length)
		return
	}
	var b [2]byte
	e.order.PutUint16(b[:], uint16(length))
	buf.Write(b[:])
}

func (e dicomEncoder) value(el DICOMElement) []byte {
	if el.VR != "US" || e.order == binary.LittleEndian {
		return el.Value
	}
	out := make([]byte, len(el.Value))
	for i := 0; i+1 < len(el.Value); i += 2 {
		out[i], out[i+1] = el.Value[i+1], el.Value[i]
	}
	return out
}

func (e dicomEncoder) elements(buf *bytes.Buffer, elems []DICOMElement) {
	for _, el := range elems {
		if el.VR != "SQ" {
			v := e.value(el)
			e.header(buf, el, uint32(len(v)))
			buf.Write(v)
			continue
		}
		var body bytes.Buffer
		for _, item := range el.Items {
			var itemBody bytes.Buffer
			e.elements(&itemBody, item)
			e.tag(&body, 0xFFFE, 0xE000)
			if el.UndefinedLength {
				e.u32(&body, 0xFFFFFFFF)
				body.Write(itemBody.Bytes())
				e.tag(&body, 0xFFFE, 0xE00D)
				e.u32(&body, 0)
			} else {
				e.u32(&body, uint32(itemBody.Len()))
				body.Write(itemBody.Bytes())
			}
		}
		if el.UndefinedLength {
			e.header(buf, el, 0xFFFFFFFF)
			buf.Write(body.Bytes())
			e.tag(buf, 0xFFFE, 0xE0DD)
			e.u32(buf, 0)
			continue
		}
		e.header(buf, el, uint32(body.Len()))
		buf.Write(body.Bytes())
	}
}

// EncodeDICOM returns a DICOM Part 10 byte stream: preamble, magic, file meta
// group and the given dataset elements.
func EncodeDICOM(opts DICOMOptions, elems ...DICOMElement) []byte {
	ts := opts.TransferSyntax
	if ts == "" {
		ts = ExplicitVRLittleEndian
	}
	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")

	if !opts.OmitMeta {
		meta := dicomEncoder{order: binary.LittleEndian, explicit: true}
		var group bytes.Buffer
		meta.elements(&group, []DICOMElement{
			Bytes(0x0002, 0x0001, "OB", []byte{0, 1}),
			Text(0x0002, 0x0010, "UI", ts),
		})
		meta.elements(&out, []DICOMElement{{Group: 0x0002, Element: 0x0000, VR: "UL", Value: binary.LittleEndian.AppendUint32(nil, uint32(group.Len()))}})
		out.Write(group.Bytes())
	}

	enc := dicomEncoder{order: binary.LittleEndian, explicit: true}
	switch ts {
	case ImplicitVRLittleEndian:
		enc.explicit = false
	case ExplicitVRBigEndian:
		enc.order = binary.BigEndian
	}
	var body bytes.Buffer
	enc.elements(&body, elems)

	if ts == DeflatedExplicitVRLE && !opts.OmitMeta {
		var deflated bytes.Buffer
		w, _ := flate.NewWriter(&deflated, flate.DefaultCompression)
		_, _ = w.Write(body.Bytes())
		_ = w.Close()
		body = deflated
	}
	out.Write(body.Bytes())

	data := out.Bytes()
	if opts.TruncateBy > 0 && opts.TruncateBy < len(data) {
		data = data[:len(data)-opts.TruncateBy]
	}
	return data
}

// WriteDICOMFile writes EncodeDICOM output to path, creating parent
// directories.
func WriteDICOMFile(t *testing.T, path string, opts DICOMOptions, elems ...DICOMElement) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, EncodeDICOM(opts, elems...), 0o644))
}

// --- END OF FINAL REVISED FILE internal/testutil/dicom.go ---

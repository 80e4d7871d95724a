// --- START OF FINAL REVISED FILE pkg/extractor/dicom/parser.go ---
package dicom

import (
	"bufio"
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

const (
	preambleLength   = 128
	undefinedLength  = 0xFFFFFFFF
	maxDepth         = 32
	maxInflatedValue = 256 << 20
	ctxCheckInterval = 64
)

var dicomMagic = []byte("DICM")

// Transfer syntaxes that change how the dataset after the meta group is
// encoded. Anything else (including the compressed pixel syntaxes) is
// explicit VR little endian for the header.
const (
	tsImplicitLittle = "1.2.840.10008.1.2"
	tsExplicitBig    = "1.2.840.10008.1.2.2"
	tsDeflated       = "1.2.840.10008.1.2.1.99"
)

// scope is the state shared by the elements of one nesting level.
type scope struct {
	prefix   string
	selected bool // an enclosing sequence was selected
	mute     bool // nothing at this level is emitted
	depth    int
}

type parser struct {
	path     string
	r        *bufio.Reader
	order    binary.ByteOrder
	explicit bool
	pos      int64
	size     int64 // bytes available from pos 0, or -1 when unknown
	text     *textDecoder
	selector map[Tag]bool
	rec      *extractor.Record
	elements int
	stopped  bool
}

func newParser(path string, r io.Reader, size int64, selector map[Tag]bool, rec *extractor.Record) *parser {
	return &parser{
		path:     path,
		r:        bufio.NewReaderSize(r, 64*1024),
		order:    binary.LittleEndian,
		explicit: true,
		size:     size,
		selector: selector,
		rec:      rec,
	}
}

func (p *parser) fail(kind extractor.ErrorKind, format string, args ...any) error {
	return extractor.NewExtractError(kind, p.path, fmt.Errorf(format, args...))
}

// truncated converts short reads into malformed-file errors.
func (p *parser) truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return p.fail(extractor.ErrorKindMalformed, "truncated %s at offset %d", what, p.pos)
	}
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return p.fail(extractor.ErrorKindMalformed, "corrupt deflated dataset: %v", err)
	}
	return p.fail(extractor.ErrorKindIO, "read at offset %d: %v", p.pos, err)
}

func (p *parser) read(buf []byte) error {
	n, err := io.ReadFull(p.r, buf)
	p.pos += int64(n)
	return err
}

func (p *parser) skip(n int64) error {
	skipped, err := io.CopyN(io.Discard, p.r, n)
	p.pos += skipped
	return err
}

// checkLength rejects element lengths that cannot fit in what is left of the
// stream.
func (p *parser) checkLength(tag Tag, length uint32) error {
	if p.size >= 0 {
		if p.pos+int64(length) > p.size {
			return p.fail(extractor.ErrorKindMalformed, "element %s length %d exceeds file size", tag, length)
		}
		return nil
	}
	if length > maxInflatedValue {
		return p.fail(extractor.ErrorKindMalformed, "element %s length %d exceeds limit", tag, length)
	}
	return nil
}

// parse validates the preamble, reads the file meta group and then the main
// dataset up to the pixel data.
func (p *parser) parse(ctx context.Context) error {
	head := make([]byte, preambleLength+len(dicomMagic))
	if err := p.read(head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return p.fail(extractor.ErrorKindUnsupported, "file too short for a DICOM preamble")
		}
		return p.fail(extractor.ErrorKindIO, "read preamble: %v", err)
	}
	if !bytes.Equal(head[preambleLength:], dicomMagic) {
		return p.fail(extractor.ErrorKindUnsupported, "missing DICM magic at offset %d", preambleLength)
	}

	ts, err := p.readMeta()
	if err != nil {
		return err
	}
	if err := p.applyTransferSyntax(ts); err != nil {
		return err
	}
	return p.readDataset(ctx, scope{}, -1, false)
}

// readMeta reads group 0002 elements, always explicit VR little endian, and
// returns the transfer syntax UID ("" when absent).
func (p *parser) readMeta() (string, error) {
	var ts string
	for {
		peek, err := p.r.Peek(2)
		if err != nil || binary.LittleEndian.Uint16(peek) != 0x0002 {
			return ts, nil
		}
		tag, _, length, err := p.readHeader()
		if err != nil {
			return "", err
		}
		if length == undefinedLength {
			return "", p.fail(extractor.ErrorKindMalformed, "undefined length in file meta element %s", tag)
		}
		if err := p.checkLength(tag, length); err != nil {
			return "", err
		}
		if tag != tagTransferSyntaxUID {
			if err := p.skip(int64(length)); err != nil {
				return "", p.truncated(err, "file meta element "+tag.String())
			}
			continue
		}
		raw := make([]byte, length)
		if err := p.read(raw); err != nil {
			return "", p.truncated(err, "transfer syntax")
		}
		ts = strings.TrimRight(string(raw), " \x00")
	}
}

func (p *parser) applyTransferSyntax(ts string) error {
	switch ts {
	case tsImplicitLittle:
		p.explicit = false
	case tsExplicitBig:
		p.order = binary.BigEndian
	case tsDeflated:
		p.r = bufio.NewReaderSize(flate.NewReader(p.r), 64*1024)
		p.size = -1
	case "":
		p.explicit = p.looksExplicit()
	}
	return nil
}

// looksExplicit guesses the encoding of a dataset without a transfer syntax
// by checking whether bytes 4-5 of the first element form a known VR.
func (p *parser) looksExplicit() bool {
	peek, err := p.r.Peek(6)
	if err != nil {
		return true
	}
	return knownVRs[string(peek[4:6])]
}

// readHeader reads one element header. Item and delimiter tags never carry a
// VR. A clean io.EOF is returned untouched when no byte of the tag was read.
func (p *parser) readHeader() (Tag, string, uint32, error) {
	var b [4]byte
	if err := p.read(b[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, "", 0, io.EOF
		}
		return 0, "", 0, p.truncated(err, "element tag")
	}
	tag := NewTag(p.order.Uint16(b[0:]), p.order.Uint16(b[2:]))

	if tag.Group() == 0xFFFE {
		if err := p.read(b[:]); err != nil {
			return 0, "", 0, p.truncated(err, "item length")
		}
		return tag, "", p.order.Uint32(b[:]), nil
	}

	if !p.explicit {
		if err := p.read(b[:]); err != nil {
			return 0, "", 0, p.truncated(err, "element length")
		}
		return tag, lookupVR(tag), p.order.Uint32(b[:]), nil
	}

	var vrb [2]byte
	if err := p.read(vrb[:]); err != nil {
		return 0, "", 0, p.truncated(err, "value representation")
	}
	vr := string(vrb[:])
	if !knownVRs[vr] {
		return 0, "", 0, p.fail(extractor.ErrorKindMalformed, "invalid VR %q for element %s at offset %d", vr, tag, p.pos-6)
	}
	if longLengthVRs[vr] {
		var l [6]byte
		if err := p.read(l[:]); err != nil {
			return 0, "", 0, p.truncated(err, "element length")
		}
		return tag, vr, p.order.Uint32(l[2:]), nil
	}
	var l [2]byte
	if err := p.read(l[:]); err != nil {
		return 0, "", 0, p.truncated(err, "element length")
	}
	return tag, vr, uint32(p.order.Uint16(l[:])), nil
}

func (p *parser) wanted(sc scope, tag Tag) bool {
	if sc.mute || excluded(tag) {
		return false
	}
	return p.selector == nil || sc.selected || p.selector[tag]
}

// readDataset reads elements until the stream ends (top level), until end is
// reached (definite length item) or until an item delimiter (undefined
// length item).
func (p *parser) readDataset(ctx context.Context, sc scope, end int64, undefined bool) error {
	if sc.depth > maxDepth {
		return p.fail(extractor.ErrorKindMalformed, "sequence nesting deeper than %d", maxDepth)
	}
	topLevel := end < 0 && !undefined
	for !p.stopped {
		if end >= 0 && p.pos >= end {
			if p.pos > end {
				return p.fail(extractor.ErrorKindMalformed, "item overruns its length at offset %d", p.pos)
			}
			return nil
		}
		p.elements++
		if p.elements%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		tag, vr, length, err := p.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if topLevel {
					return nil
				}
				return p.fail(extractor.ErrorKindMalformed, "dataset ends inside a sequence item")
			}
			return err
		}

		switch tag {
		case tagItemDelimitation:
			if undefined {
				return nil
			}
			continue
		case tagSequenceDelimitation, tagItem:
			return p.fail(extractor.ErrorKindMalformed, "unexpected %s outside a sequence at offset %d", tag, p.pos-8)
		case tagPixelData:
			if topLevel {
				p.stopped = true
				return nil
			}
		}

		if vr == "SQ" || (length == undefinedLength && vr == "UN") {
			inner := scope{
				prefix:   sc.prefix + elementName(tag) + " " + tag.String() + " - ",
				selected: sc.selected || (p.selector != nil && p.selector[tag]),
				mute:     sc.mute || excluded(tag),
				depth:    sc.depth + 1,
			}
			if err := p.readSequence(ctx, inner, tag, vr, length); err != nil {
				return err
			}
			continue
		}
		if length == undefinedLength {
			if err := p.skipFragments(tag); err != nil {
				return err
			}
			continue
		}
		if err := p.checkLength(tag, length); err != nil {
			return err
		}

		isCharset := tag == tagSpecificCharacterSet && sc.depth == 0
		if !p.wanted(sc, tag) && !isCharset {
			if err := p.skip(int64(length)); err != nil {
				return p.truncated(err, "value of "+tag.String())
			}
			continue
		}
		raw := make([]byte, length)
		if err := p.read(raw); err != nil {
			return p.truncated(err, "value of "+tag.String())
		}
		if isCharset {
			dec, ok := newTextDecoder(strings.TrimRight(string(raw), " \x00"))
			if !ok {
				dec = nil
			}
			p.text = dec
		}
		if p.wanted(sc, tag) {
			p.rec.Set(sc.prefix+elementName(tag)+" "+tag.String(), decodeValue(vr, raw, p.order, p.text))
		}
	}
	return nil
}

// readSequence reads the items of a sequence. A UN element of undefined
// length holds an implicit VR little endian sequence.
func (p *parser) readSequence(ctx context.Context, sc scope, tag Tag, vr string, length uint32) error {
	if vr == "UN" && p.explicit {
		order, explicit := p.order, p.explicit
		p.order, p.explicit = binary.LittleEndian, false
		defer func() { p.order, p.explicit = order, explicit }()
	}

	end := int64(-1)
	if length != undefinedLength {
		if err := p.checkLength(tag, length); err != nil {
			return err
		}
		end = p.pos + int64(length)
	}
	for {
		if end >= 0 && p.pos >= end {
			return nil
		}
		itemTag, _, itemLength, err := p.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return p.fail(extractor.ErrorKindMalformed, "sequence %s not terminated", tag)
			}
			return err
		}
		switch itemTag {
		case tagSequenceDelimitation:
			return nil
		case tagItem:
		default:
			return p.fail(extractor.ErrorKindMalformed, "unexpected %s in sequence %s", itemTag, tag)
		}
		if itemLength == undefinedLength {
			if err := p.readDataset(ctx, sc, -1, true); err != nil {
				return err
			}
			continue
		}
		if err := p.checkLength(itemTag, itemLength); err != nil {
			return err
		}
		if err := p.readDataset(ctx, sc, p.pos+int64(itemLength), false); err != nil {
			return err
		}
	}
}

// skipFragments skips an encapsulated value: items of raw bytes ended by a
// sequence delimiter.
func (p *parser) skipFragments(tag Tag) error {
	for {
		itemTag, _, itemLength, err := p.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return p.fail(extractor.ErrorKindMalformed, "encapsulated value %s not terminated", tag)
			}
			return err
		}
		switch itemTag {
		case tagSequenceDelimitation:
			return nil
		case tagItem:
			if itemLength == undefinedLength {
				return p.fail(extractor.ErrorKindMalformed, "undefined length fragment in %s", tag)
			}
			if err := p.checkLength(itemTag, itemLength); err != nil {
				return err
			}
			if err := p.skip(int64(itemLength)); err != nil {
				return p.truncated(err, "fragment of "+tag.String())
			}
		default:
			return p.fail(extractor.ErrorKindMalformed, "unexpected %s in encapsulated value %s", itemTag, tag)
		}
	}
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/parser.go ---

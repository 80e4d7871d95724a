// --- START OF FINAL REVISED FILE pkg/extractor/dicom/tag.go ---
package dicom

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a data element tag, group in the high 16 bits.
type Tag uint32

// NewTag builds a tag from group and element numbers.
func NewTag(group, element uint16) Tag { return Tag(uint32(group)<<16 | uint32(element)) }

// Group returns the group number.
func (t Tag) Group() uint16 { return uint16(t >> 16) }

// Element returns the element number.
func (t Tag) Element() uint16 { return uint16(t) }

// String formats the tag as "(GGGG, EEEE)".
func (t Tag) String() string { return fmt.Sprintf("(%04X, %04X)", t.Group(), t.Element()) }

// IsPrivate reports whether the tag belongs to an odd (private) group.
func (t Tag) IsPrivate() bool { return t.Group()%2 == 1 }

// IsPrivateCreator reports whether the tag reserves a private block.
func (t Tag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.Element() >= 0x0010 && t.Element() <= 0x00FF
}

const (
	tagItem                 Tag = 0xFFFEE000
	tagItemDelimitation     Tag = 0xFFFEE00D
	tagSequenceDelimitation Tag = 0xFFFEE0DD
	tagPixelData            Tag = 0x7FE00010
	tagSpecificCharacterSet Tag = 0x00080005
	tagTransferSyntaxUID    Tag = 0x00020010
)

// excluded reports whether elements of tag's group are left out of records:
// file meta, overlays (even 60xx groups), pixel data and the signature and
// delimiter groups.
func excluded(t Tag) bool {
	g := t.Group()
	switch {
	case g == 0x0002:
		return true
	case g>>8 == 0x60 && g%2 == 0:
		return true
	case g == 0x7FE0, g == 0xFFFA, g == 0xFFFC, g == 0xFFFE:
		return true
	}
	return false
}

// ParseTag accepts "GGGG,EEEE", "(GGGG, EEEE)" or "GGGGEEEE" in hex.
func ParseTag(s string) (Tag, error) {
	clean := strings.NewReplacer("(", "", ")", "", " ", "", ",", "").Replace(strings.TrimSpace(s))
	if len(clean) != 8 {
		return 0, fmt.Errorf("invalid tag %q: expected 8 hex digits", s)
	}
	v, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tag %q: %w", s, err)
	}
	return Tag(v), nil
}

// --- END OF FINAL REVISED FILE pkg/extractor/dicom/tag.go ---

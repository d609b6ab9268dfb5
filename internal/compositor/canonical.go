package compositor

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// canonicalize makes a file pdfcpu wrote with a classic xref table
// byte-stable. pdfcpu emits objects in map order and stamps the info dates
// and file ID from the wall clock, so objects are laid out by number, the
// dates are set to stamp and the new ID half becomes an MD5 of the content.
// Every rewrite keeps lengths, so the xref position stays valid.
func canonicalize(raw []byte, doc *model.Context, stamp time.Time) ([]byte, error) {
	out, err := reorderObjects(raw, doc.Write.Table)
	if err != nil {
		return nil, err
	}

	pinned := "(" + types.DateString(stamp.UTC()) + ")"
	for _, written := range infoDates(doc) {
		lit := "(" + written + ")"
		if len(lit) != len(pinned) {
			return nil, fmt.Errorf("unexpected info date %q", written)
		}
		out = bytes.ReplaceAll(out, []byte(lit), []byte(pinned))
	}

	if len(doc.ID) == 2 {
		if fresh, ok := doc.ID[1].(types.HexLiteral); ok {
			if err := deriveFileID(out, "<"+string(fresh)+">"); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

type objectSpan struct {
	nr         int
	start, end int
}

// reorderObjects lays the body objects out by object number and patches the
// xref entries to match
func reorderObjects(raw []byte, offsets map[int]int64) ([]byte, error) {
	xref := bytes.LastIndex(raw, []byte("\nxref")) + 1
	if xref <= 0 {
		return nil, errors.New("missing xref table")
	}
	if len(offsets) == 0 {
		return nil, errors.New("no objects written")
	}

	spans := make([]objectSpan, 0, len(offsets))
	for nr, off := range offsets {
		spans = append(spans, objectSpan{nr: nr, start: int(off)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := range spans {
		end := xref
		if i+1 < len(spans) {
			end = spans[i+1].start
		}
		if spans[i].start <= 0 || spans[i].start > end {
			return nil, fmt.Errorf("object %d has offset %d outside the body", spans[i].nr, spans[i].start)
		}
		spans[i].end = end
	}
	header := spans[0].start
	sort.Slice(spans, func(i, j int) bool { return spans[i].nr < spans[j].nr })

	out := make([]byte, 0, len(raw))
	out = append(out, raw[:header]...)
	moved := make(map[int]int, len(spans))
	for _, s := range spans {
		moved[s.nr] = len(out)
		out = append(out, raw[s.start:s.end]...)
	}

	tail := append([]byte(nil), raw[xref:]...)
	if err := patchXRef(tail, moved); err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}

// patchXRef rewrites the offsets of in-use entries in an xref section
func patchXRef(section []byte, moved map[int]int) error {
	lines := bytes.SplitAfter(section, []byte("\n"))
	if len(lines) == 0 || !bytes.HasPrefix(lines[0], []byte("xref")) {
		return errors.New("malformed xref table")
	}

	pos := len(lines[0])
	for i := 1; i < len(lines); i++ {
		fields := bytes.Fields(lines[i])
		if len(fields) != 2 {
			// trailer
			return nil
		}
		first, err1 := strconv.Atoi(string(fields[0]))
		count, err2 := strconv.Atoi(string(fields[1]))
		if err1 != nil || err2 != nil {
			return fmt.Errorf("malformed xref subsection %q", bytes.TrimSpace(lines[i]))
		}
		pos += len(lines[i])

		for k := 0; k < count; k++ {
			i++
			if i >= len(lines) || len(lines[i]) < 18 {
				return errors.New("truncated xref table")
			}
			if lines[i][17] == 'n' {
				if off, ok := moved[first+k]; ok {
					copy(section[pos:pos+10], fmt.Sprintf("%010d", off))
				}
			}
			pos += len(lines[i])
		}
	}
	return nil
}

func infoDates(doc *model.Context) []string {
	if doc.Info == nil {
		return nil
	}
	d, err := doc.DereferenceDict(*doc.Info)
	if err != nil || d == nil {
		return nil
	}
	var dates []string
	for _, key := range []string{"CreationDate", "ModDate"} {
		if s := d.StringEntry(key); s != nil {
			dates = append(dates, *s)
		}
	}
	return dates
}

// deriveFileID replaces every occurrence of id with the MD5 of the file
// taken while those occurrences are zeroed
func deriveFileID(out []byte, id string) error {
	var at []int
	for from := 0; ; {
		i := bytes.Index(out[from:], []byte(id))
		if i < 0 {
			break
		}
		at = append(at, from+i)
		from += i + len(id)
	}
	if len(at) == 0 {
		return nil
	}

	digits := len(id) - 2
	if digits != 2*md5.Size {
		return fmt.Errorf("unexpected file id length %d", digits)
	}
	for _, p := range at {
		copy(out[p+1:p+1+digits], bytes.Repeat([]byte("0"), digits))
	}
	sum := md5.Sum(out)
	derived := hex.EncodeToString(sum[:])
	for _, p := range at {
		copy(out[p+1:p+1+digits], derived)
	}
	return nil
}

// Package importfmt implements the CLI's line formats for import_tab,
// import_json and export_json. It is a thin reader/writer calling
// straight into internal/importer.Manager and internal/scanner.Manager
// — not a general-purpose parsing library.
package importfmt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/i5heu/blockhashdb/internal/codec"
	"github.com/i5heu/blockhashdb/internal/importer"
	"github.com/i5heu/blockhashdb/internal/scanner"
)

// ImportTab reads tab-separated records, one per line:
//
//	block_hash_hex<TAB>file_hash_hex<TAB>file_offset<TAB>repository<TAB>filename
//
// and writes each through mgr.
func ImportTab(r io.Reader, mgr *importer.Manager) (int, error) {
	scan := bufio.NewScanner(r)
	n := 0
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return n, fmt.Errorf("importfmt: line %d: expected 5 tab-separated fields, got %d", n+1, len(fields))
		}
		blockHash, ok := codec.HexToBin(fields[0])
		if !ok {
			return n, fmt.Errorf("importfmt: line %d: %w", n+1, codec.ErrBadHex)
		}
		fileHash, ok := codec.HexToBin(fields[1])
		if !ok {
			return n, fmt.Errorf("importfmt: line %d: %w", n+1, codec.ErrBadHex)
		}
		offset, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return n, fmt.Errorf("importfmt: line %d: bad file_offset: %w", n+1, err)
		}

		if _, err := mgr.InsertHash(blockHash, fileHash, offset, 0, nil); err != nil {
			return n, err
		}
		sid, err := mgr.InternFileHash(fileHash)
		if err != nil {
			return n, err
		}
		if err := mgr.InsertSourceName(sid, fields[3], fields[4]); err != nil {
			return n, err
		}
		n++
	}
	if err := scan.Err(); err != nil {
		return n, fmt.Errorf("importfmt: scan: %w", err)
	}
	return n, nil
}

// jsonLine is one import_json input record, one JSON object per line.
type jsonLine struct {
	BlockHash         string `json:"block_hash"`
	FileHash          string `json:"file_hash"`
	FileOffset        uint64 `json:"file_offset"`
	Entropy           uint64 `json:"entropy"`
	BlockLabel        string `json:"block_label"`
	Repository        string `json:"repository"`
	Filename          string `json:"filename"`
	Filesize          uint64 `json:"filesize"`
	FileType          string `json:"file_type"`
	NonprobativeCount uint64 `json:"nonprobative_count"`
}

// ImportJSON reads one jsonLine object per line and writes each
// through mgr.
func ImportJSON(r io.Reader, mgr *importer.Manager) (int, error) {
	scan := bufio.NewScanner(r)
	n := 0
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		var rec jsonLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return n, fmt.Errorf("importfmt: line %d: %w", n+1, err)
		}
		blockHash, ok := codec.HexToBin(rec.BlockHash)
		if !ok {
			return n, fmt.Errorf("importfmt: line %d: %w", n+1, codec.ErrBadHex)
		}
		fileHash, ok := codec.HexToBin(rec.FileHash)
		if !ok {
			return n, fmt.Errorf("importfmt: line %d: %w", n+1, codec.ErrBadHex)
		}

		if _, err := mgr.InsertHash(blockHash, fileHash, rec.FileOffset, rec.Entropy, []byte(rec.BlockLabel)); err != nil {
			return n, err
		}
		sid, err := mgr.InternFileHash(fileHash)
		if err != nil {
			return n, err
		}
		if rec.Repository != "" {
			if err := mgr.InsertSourceName(sid, rec.Repository, rec.Filename); err != nil {
				return n, err
			}
		}
		if rec.Filesize != 0 || rec.FileType != "" || rec.NonprobativeCount != 0 {
			if err := mgr.InsertSourceData(sid, rec.Filesize, rec.FileType, rec.NonprobativeCount); err != nil {
				return n, err
			}
		}
		n++
	}
	if err := scan.Err(); err != nil {
		return n, fmt.Errorf("importfmt: scan: %w", err)
	}
	return n, nil
}

// ExportJSON streams every stored hash through
// scanner.Manager.FindExpandedHash, writing one non-empty JSON line per
// hash to w.
func ExportJSON(mgr *scanner.Manager, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	h, found, err := mgr.HashBegin()
	if err != nil {
		return 0, err
	}
	n := 0
	for found {
		_, text, err := mgr.FindExpandedHash(h)
		if err != nil {
			return n, err
		}
		if text != "" {
			if _, err := bw.WriteString(text); err != nil {
				return n, err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return n, err
			}
			n++
		}
		h, found, err = mgr.HashNext(h)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Command blockhashdb is an illustrative CLI front-end over the
// database engine: switch on os.Args[1], positional arguments per
// subcommand, exit 0 on success and 1 on any validation/IO error with
// a message on stderr.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand/v2"
	"os"

	"github.com/i5heu/blockhashdb"
	"github.com/i5heu/blockhashdb/internal/adder"
	"github.com/i5heu/blockhashdb/internal/codec"
	"github.com/i5heu/blockhashdb/internal/importer"
	"github.com/i5heu/blockhashdb/internal/importfmt"
	"github.com/i5heu/blockhashdb/internal/scanner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if err := dispatch(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "blockhashdb: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: blockhashdb <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  create <dir>")
	fmt.Println("  import_tab <dir> <file>")
	fmt.Println("  import_json <dir> <file>")
	fmt.Println("  export_json <dir>")
	fmt.Println("  add <src-dir> <dst-dir>")
	fmt.Println("  add_multiple <dst-dir> <src-dir>...")
	fmt.Println("  add_repository <src-dir> <dst-dir> <repository>")
	fmt.Println("  subtract_repository <src-dir> <dst-dir> <repository>")
	fmt.Println("  intersect <a-dir> <b-dir> <dst-dir>")
	fmt.Println("  intersect_hash <a-dir> <b-dir> <dst-dir>")
	fmt.Println("  subtract <a-dir> <b-dir> <dst-dir>")
	fmt.Println("  subtract_hash <a-dir> <b-dir> <dst-dir>")
	fmt.Println("  deduplicate <src-dir> <dst-dir>")
	fmt.Println("  scan <dir> <hash-hex>")
	fmt.Println("  scan_hash <dir> <hash-hex>")
	fmt.Println("  sizes <dir>")
	fmt.Println("  sources <dir>")
	fmt.Println("  histogram <dir>")
	fmt.Println("  duplicates <dir>")
	fmt.Println("  hash_table <dir>")
	fmt.Println("  add_random <dir> <count>")
	fmt.Println("  scan_random <dir> <count>")
	fmt.Println("  add_same <dir> <count> <hash-hex>")
	fmt.Println("  scan_same <dir> <count> <hash-hex>")
}

func dispatch(cmd string, args []string) error {
	switch cmd {
	case "create":
		return cmdCreate(args)
	case "import_tab":
		return cmdImportTab(args)
	case "import_json":
		return cmdImportJSON(args)
	case "export_json":
		return cmdExportJSON(args)
	case "add":
		return cmdTwoDB(args, adder.Add)
	case "add_multiple":
		return cmdAddMultiple(args)
	case "add_repository":
		return cmdRepository(args, adder.AddRepository)
	case "subtract_repository":
		return cmdRepository(args, adder.SubtractRepository)
	case "intersect":
		return cmdThreeDB(args, adder.Intersect)
	case "intersect_hash":
		return cmdThreeDB(args, adder.IntersectHash)
	case "subtract":
		return cmdThreeDB(args, adder.Subtract)
	case "subtract_hash":
		return cmdThreeDB(args, adder.SubtractHash)
	case "deduplicate":
		return cmdTwoDB(args, adder.Deduplicate)
	case "scan", "scan_hash":
		return cmdScan(args)
	case "sizes":
		return cmdSizes(args)
	case "sources":
		return cmdSources(args)
	case "histogram":
		return cmdHistogram(args)
	case "duplicates":
		return cmdDuplicates(args)
	case "hash_table":
		return cmdHashTable(args)
	case "add_random":
		return cmdAddRandom(args)
	case "scan_random":
		return cmdScanRandom(args)
	case "add_same":
		return cmdAddSame(args)
	case "scan_same":
		return cmdScanSame(args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openDB(dir string) (*blockhashdb.DB, error) {
	return blockhashdb.Open(blockhashdb.Config{Path: dir})
}

func cmdCreate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create <dir>")
	}
	db, err := blockhashdb.Create(blockhashdb.Config{Path: args[0]}, blockhashdb.CreateOptions{HashLen: 32})
	if err != nil {
		return err
	}
	return db.Close()
}

func cmdImportTab(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: import_tab <dir> <file>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := importfmt.ImportTab(f, db.Importer())
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records\n", n)
	return nil
}

func cmdImportJSON(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: import_json <dir> <file>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := importfmt.ImportJSON(f, db.Importer())
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records\n", n)
	return nil
}

func cmdExportJSON(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: export_json <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := importfmt.ExportJSON(db.Scanner(), os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d records\n", n)
	return nil
}

func cmdTwoDB(args []string, op func(src *scanner.Manager, dst *importer.Manager) error) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: <src-dir> <dst-dir>")
	}
	src, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := openDB(args[1])
	if err != nil {
		return err
	}
	defer dst.Close()

	return op(src.Scanner(), dst.Importer())
}

func cmdRepository(args []string, op func(src *scanner.Manager, dst *importer.Manager, repository string) error) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: <src-dir> <dst-dir> <repository>")
	}
	src, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := openDB(args[1])
	if err != nil {
		return err
	}
	defer dst.Close()

	return op(src.Scanner(), dst.Importer(), args[2])
}

func cmdThreeDB(args []string, op func(a, b *scanner.Manager, dst *importer.Manager) error) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: <a-dir> <b-dir> <dst-dir>")
	}
	a, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := openDB(args[1])
	if err != nil {
		return err
	}
	defer b.Close()
	dst, err := openDB(args[2])
	if err != nil {
		return err
	}
	defer dst.Close()

	return op(a.Scanner(), b.Scanner(), dst.Importer())
}

func cmdAddMultiple(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: add_multiple <dst-dir> <src-dir>...")
	}
	dst, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer dst.Close()

	var producers []*scanner.Manager
	for _, dir := range args[1:] {
		src, err := openDB(dir)
		if err != nil {
			return err
		}
		defer src.Close()
		producers = append(producers, src.Scanner())
	}
	return adder.AddMultiple(producers, dst.Importer())
}

func cmdScan(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: scan <dir> <hash-hex>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	h, ok := codec.HexToBin(args[1])
	if !ok {
		return codec.ErrBadHex
	}
	found, text, err := db.Scanner().FindExpandedHash(h)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		return nil
	}
	fmt.Println(text)
	return nil
}

func cmdSizes(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sizes <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	count := 0
	h, found, err := db.Scanner().HashBegin()
	for found {
		if err != nil {
			return err
		}
		count++
		h, found, err = db.Scanner().HashNext(h)
	}
	if err != nil {
		return err
	}
	fmt.Printf("distinct_hashes=%d\n", count)
	return nil
}

func cmdSources(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sources <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	sid, found, err := db.Scanner().SourceBegin()
	for found {
		if err != nil {
			return err
		}
		names, err := db.Scanner().FindSourceNames(sid)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Printf("%d\t%s\t%s\n", sid, n.Repository, n.Filename)
		}
		sid, found, err = db.Scanner().SourceNext(sid)
	}
	return err
}

func cmdHistogram(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: histogram <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	byCount := map[int]int{}
	totalHashes := 0
	h, found, err := db.Scanner().HashBegin()
	for found {
		if err != nil {
			return err
		}
		count, err := db.Scanner().FindHashCount(h)
		if err != nil {
			return err
		}
		byCount[count]++
		totalHashes += count
		h, found, err = db.Scanner().HashNext(h)
	}
	if err != nil {
		return err
	}

	distinct := 0
	for _, n := range byCount {
		distinct += n
	}
	fmt.Printf(`{"total_hashes":%d,"total_distinct_hashes":%d}`+"\n", totalHashes, distinct)
	for k, n := range byCount {
		fmt.Printf(`{"duplicates":%d,"distinct_hashes":%d,"total":%d}`+"\n", k, n, k*n)
	}
	return nil
}

func cmdDuplicates(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: duplicates <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	h, found, err := db.Scanner().HashBegin()
	for found {
		if err != nil {
			return err
		}
		count, err := db.Scanner().FindHashCount(h)
		if err != nil {
			return err
		}
		if count > 1 {
			fmt.Println(codec.BinToHex(h))
		}
		h, found, err = db.Scanner().HashNext(h)
	}
	return err
}

func cmdHashTable(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: hash_table <dir>")
	}
	db, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	h, found, err := db.Scanner().HashBegin()
	for found {
		if err != nil {
			return err
		}
		count, err := db.Scanner().FindHashCount(h)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\n", codec.BinToHex(h), count)
		h, found, err = db.Scanner().HashNext(h)
	}
	return err
}

// add_random/scan_random/add_same/scan_same generate or probe synthetic
// block hashes, for load testing without a real corpus. add_random and
// scan_random draw from a locally-seeded *rand.Rand (never a
// process-global PRNG); add_same and scan_same use one caller-given hash.

func cmdAddRandom(args []string) error {
	dir, count, err := dirAndCount(args, "add_random")
	if err != nil {
		return err
	}
	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	rng := newSeededRand()
	fh := []byte("add_random-synthetic-source")
	for i := 0; i < count; i++ {
		h := randomHash(rng, 32)
		if _, err := db.Importer().InsertHash(h, fh, 0, 0, nil); err != nil {
			return err
		}
	}
	return nil
}

func cmdScanRandom(args []string) error {
	dir, count, err := dirAndCount(args, "scan_random")
	if err != nil {
		return err
	}
	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	rng := newSeededRand()
	hits := 0
	for i := 0; i < count; i++ {
		h := randomHash(rng, 32)
		_, _, found, err := db.Scanner().FindHash(h)
		if err != nil {
			return err
		}
		if found {
			hits++
		}
	}
	fmt.Printf("hits=%d/%d\n", hits, count)
	return nil
}

func cmdAddSame(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: add_same <dir> <count> <hash-hex>")
	}
	dir, count, err := dirAndCount(args[:2], "add_same")
	if err != nil {
		return err
	}
	h, ok := codec.HexToBin(args[2])
	if !ok {
		return codec.ErrBadHex
	}
	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < count; i++ {
		fh := []byte(fmt.Sprintf("add_same-source-%d", i))
		if _, err := db.Importer().InsertHash(h, fh, 0, 0, nil); err != nil {
			return err
		}
	}
	return nil
}

func cmdScanSame(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: scan_same <dir> <count> <hash-hex>")
	}
	dir, count, err := dirAndCount(args[:2], "scan_same")
	if err != nil {
		return err
	}
	h, ok := codec.HexToBin(args[2])
	if !ok {
		return codec.ErrBadHex
	}
	db, err := openDB(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < count; i++ {
		if _, _, _, err := db.Scanner().FindHash(h); err != nil {
			return err
		}
	}
	return nil
}

func dirAndCount(args []string, cmdName string) (string, int, error) {
	if len(args) < 2 {
		return "", 0, fmt.Errorf("usage: %s <dir> <count>", cmdName)
	}
	var count int
	if _, err := fmt.Sscanf(args[1], "%d", &count); err != nil {
		return "", 0, fmt.Errorf("bad count %q: %w", args[1], err)
	}
	return args[0], count, nil
}

// newSeededRand builds a locally-owned *rand.Rand, seeded from
// crypto/rand, for add_random/scan_random: every draw goes through an
// explicit generator instance rather than a process-global seeded PRNG.
func newSeededRand() *mathrand.Rand {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("blockhashdb: seeding PRNG: %v", err))
	}
	return mathrand.New(mathrand.NewPCG(
		binary.BigEndian.Uint64(seed[:8]),
		binary.BigEndian.Uint64(seed[8:]),
	))
}

func randomHash(rng *mathrand.Rand, n int) []byte {
	h := make([]byte, n)
	for i := range h {
		h[i] = byte(rng.IntN(256))
	}
	return h
}

package relation

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"unsafe"

	"github.com/ccoveille/go-safecast/v2"

	dberr "parajoin/pkg/error"
)

// On-disk layout, little endian:
//
//	uint64 rowCount
//	uint64 columnCount
//	columnCount × rowCount × uint64, column after column
const headerSize = 16

var nativeLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// decode splits a whole relation file into columns. When the host is
// little endian and data is 8-byte aligned the columns alias data.
func decode(data []byte) ([][]uint64, error) {
	if len(data) < headerSize {
		return nil, corrupt("file has %d bytes, header needs %d", len(data), headerSize)
	}
	rows := binary.LittleEndian.Uint64(data[0:8])
	cols := binary.LittleEndian.Uint64(data[8:16])

	payload := uint64(len(data) - headerSize)
	if cols > 0 && rows > payload/8/cols {
		return nil, corrupt("header declares %d rows × %d columns, file holds %d bytes", rows, cols, payload)
	}
	if rows*cols*8 != payload {
		return nil, corrupt("header declares %d rows × %d columns, file holds %d bytes", rows, cols, payload)
	}

	nRows, err := safecast.Convert[int](rows)
	if err != nil {
		return nil, corrupt("row count %d: %v", rows, err)
	}
	nCols, err := safecast.Convert[int](cols)
	if err != nil {
		return nil, corrupt("column count %d: %v", cols, err)
	}

	body := data[headerSize:]
	aligned := uintptr(unsafe.Pointer(unsafe.SliceData(body)))%8 == 0
	columns := make([][]uint64, nCols)
	for c := range columns {
		raw := body[c*nRows*8 : (c+1)*nRows*8]
		if nRows == 0 {
			columns[c] = []uint64{}
			continue
		}
		if nativeLittleEndian && aligned {
			columns[c] = unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(raw))), nRows)
			continue
		}
		col := make([]uint64, nRows)
		for i := range col {
			col[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
		columns[c] = col
	}
	return columns, nil
}

func corrupt(format string, args ...any) error {
	return dberr.New(dberr.ErrCategoryData, dberr.CodeRelationCorrupt, "relation file does not match its header").
		WithDetail(format, args...).
		WithOperation("Load", "Relation")
}

// Load maps the relation file at path into memory.
func Load(path string) (*Relation, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeRelationIO, "Load", "Relation")
	}

	columns, err := decode(data)
	if err != nil {
		_ = release()
		return nil, err
	}

	r, err := New(columns...)
	if err != nil {
		_ = release()
		return nil, err
	}
	r.release = release
	return r, nil
}

// Write encodes rel in the relation file format.
func Write(w io.Writer, rel *Relation) error {
	bw := bufio.NewWriter(w)

	var word [8]byte
	put := func(v uint64) error {
		binary.LittleEndian.PutUint64(word[:], v)
		_, err := bw.Write(word[:])
		return err
	}

	if err := put(uint64(rel.Size())); err != nil {
		return err
	}
	if err := put(uint64(rel.ColumnCount())); err != nil {
		return err
	}
	for _, col := range rel.columns {
		for _, v := range col {
			if err := put(v); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes rel to path, replacing any existing file.
func WriteFile(path string, rel *Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeRelationIO, "WriteFile", "Relation")
	}
	if err := Write(f, rel); err != nil {
		_ = f.Close()
		return dberr.Wrap(err, dberr.CodeRelationIO, "WriteFile", "Relation")
	}
	return f.Close()
}

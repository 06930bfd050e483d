package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/strand-ml/strand/internal/tensor"
)

// MmapReader provides memory-mapped access to .strand files. Only the
// header is parsed up front; tensor bytes are faulted in on demand through
// the OS page cache, which is the cheap way to open multi-gigabyte models.
//
// Compressed files cannot be mapped: their tensor offsets refer to the
// inflated stream, not the bytes on disk. NewMmapReader returns
// ErrCompressedMmap for them; use StrandReader instead.
type MmapReader struct {
	file       *os.File
	data       []byte // mapped region, read-only
	size       int64
	header     Header
	version    uint32
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	closed     bool
}

// NewMmapReader maps a .strand file read-only and parses its header.
//
// Always Close the reader (use defer) so the mapping is released.
func NewMmapReader(path string) (*MmapReader, error) {
	//nolint:gosec // G304: the model path is caller-chosen by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &MmapReader{
		file: file,
		data: data,
		size: stat.Size(),
	}
	if err := r.parseHeader(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return r, nil
}

func (r *MmapReader) parseHeader() error {
	if r.size < 20 {
		return fmt.Errorf("file too small: %d bytes", r.size)
	}

	if string(r.data[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	r.version = binary.LittleEndian.Uint32(r.data[4:8])
	if r.version != FormatVersion && r.version != FormatVersionV2 {
		return fmt.Errorf("%w: got %d, expected %d or %d", ErrUnsupportedVersion, r.version, FormatVersion, FormatVersionV2)
	}

	r.flags = binary.LittleEndian.Uint32(r.data[8:12])
	if r.flags&FlagCompressed != 0 {
		return ErrCompressedMmap
	}

	var headerSize uint64
	var jsonOffset int64

	if r.version == FormatVersionV2 {
		if r.size < FixedHeaderSizeV2 {
			return fmt.Errorf("file too small for v2 fixed header: %d bytes", r.size)
		}
		headerSize = binary.LittleEndian.Uint64(r.data[16:24])
		storedSize := binary.LittleEndian.Uint64(r.data[24:32])
		if storedSize > uint64(1)<<62 {
			return fmt.Errorf("data size too large: %d", storedSize)
		}
		r.dataSize = int64(storedSize)
		copy(r.checksum[:], r.data[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])
		jsonOffset = FixedHeaderSizeV2
	} else {
		headerSize = binary.LittleEndian.Uint64(r.data[12:20])
		jsonOffset = 20
	}

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	headerEnd := jsonOffset + int64(headerSize)
	if headerEnd > r.size {
		return fmt.Errorf("header extends beyond file: header end %d, file size %d", headerEnd, r.size)
	}

	if err := json.Unmarshal(r.data[jsonOffset:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = alignUp(headerEnd)
	if r.version == FormatVersion {
		r.dataSize = r.size - r.dataOffset
	}
	if r.dataOffset+r.dataSize > r.size {
		return fmt.Errorf("data section extends beyond file: offset %d + size %d > file size %d",
			r.dataOffset, r.dataSize, r.size)
	}

	if err := ValidateHeader(&r.header, r.dataSize, ValidationStrict); err != nil {
		return fmt.Errorf("header validation failed: %w", err)
	}
	return nil
}

// Close unmaps the region and closes the file. Safe to call twice.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if closeErr := r.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Header returns the parsed file header.
func (r *MmapReader) Header() Header {
	return r.header
}

// Version returns the container format version (1 or 2).
func (r *MmapReader) Version() uint32 {
	return r.version
}

// Flags returns the flags bitfield from the fixed header.
func (r *MmapReader) Flags() uint32 {
	return r.flags
}

// Checksum returns the stored SHA-256 digest (all zeros for v1 files).
func (r *MmapReader) Checksum() [32]byte {
	return r.checksum
}

// VerifyChecksum recomputes the SHA-256 over the mapped data section and
// compares it with the stored digest. Opening an mmap reader never
// validates the checksum (that would fault in the whole file and defeat
// the point), so integrity checks are explicit.
func (r *MmapReader) VerifyChecksum() error {
	if r.closed {
		return fmt.Errorf("reader is closed")
	}
	if r.version != FormatVersionV2 {
		return fmt.Errorf("legacy v1 files carry no checksum")
	}
	computed := ComputeChecksum(r.data[r.dataOffset : r.dataOffset+r.dataSize])
	return ValidateChecksum(computed, r.checksum)
}

// TensorNames lists every tensor in the file, in table order.
func (r *MmapReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the table entry for one tensor.
func (r *MmapReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("tensor %q not found", name)
}

// TensorData returns a zero-copy slice into the mapped region. The slice is
// valid only while the reader is open, and the underlying pages are mapped
// read-only: writing through it faults.
//
// Use TensorDataCopy when the bytes must outlive the reader or be mutated.
func (r *MmapReader) TensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := r.dataOffset + meta.Offset
	end := start + meta.Size
	if meta.Offset < 0 || meta.Size < 0 || end > r.size {
		return nil, fmt.Errorf("%w: tensor %q: offset %d + size %d > file size %d",
			ErrOutOfBounds, name, start, meta.Size, r.size)
	}
	return r.data[start:end], nil
}

// TensorDataCopy returns a private copy of one tensor's bytes.
func (r *MmapReader) TensorDataCopy(name string) ([]byte, error) {
	data, err := r.TensorData(name)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LoadTensor copies one tensor out of the mapping into a RawTensor.
func (r *MmapReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.TensorData(name)
	if err != nil {
		return nil, err
	}
	return tensorFromBytes(meta, data, backend)
}

// ReadStateDict loads every tensor in the file.
func (r *MmapReader) ReadStateDict(backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, backend)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

package serialization

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/strand-ml/strand/internal/tensor"
)

// StrandReader reads .strand files, both the current v2 layout and legacy
// v1 files. Compressed data sections are inflated once at open time and
// served from memory afterwards.
type StrandReader struct {
	file       *os.File
	header     Header
	version    uint32
	flags      uint32
	dataOffset int64    // file offset of the stored data section
	storedSize int64    // bytes on disk (compressed size when gzipped)
	dataSize   int64    // logical data section size after inflation
	checksum   [32]byte // v2 only
	inflated   []byte   // non-nil when FlagCompressed is set
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures validation behavior when opening a file.
type ReaderOptions struct {
	// SkipChecksumValidation opens v2 files without verifying the SHA-256.
	// Faster for huge files, but corruption goes unnoticed.
	SkipChecksumValidation bool
	ValidationLevel        ValidationLevel
}

// NewStrandReader opens a .strand file with strict validation.
func NewStrandReader(path string) (*StrandReader, error) {
	return NewStrandReaderWithOptions(path, ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
}

// NewStrandReaderWithOptions opens a .strand file with custom options.
func NewStrandReaderWithOptions(path string, opts ReaderOptions) (*StrandReader, error) {
	//nolint:gosec // G304: the model path is caller-chosen by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &StrandReader{file: file, opts: opts}
	if err := r.open(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (r *StrandReader) open() error {
	if err := r.parseHeader(); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	if r.version == FormatVersion {
		// v1 has no data-size field; everything after the header is data.
		info, err := r.file.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat file: %w", err)
		}
		r.storedSize = info.Size() - r.dataOffset
	}

	if r.flags&FlagCompressed != 0 {
		if r.version != FormatVersionV2 {
			return fmt.Errorf("compressed legacy files are not supported")
		}
		if err := r.inflate(); err != nil {
			return err
		}
		r.dataSize = int64(len(r.inflated))
	} else {
		r.dataSize = r.storedSize
	}

	if err := ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func (r *StrandReader) parseHeader() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r.file, magic); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return ErrInvalidMagic
	}

	if err := binary.Read(r.file, binary.LittleEndian, &r.version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}

	switch r.version {
	case FormatVersion:
		return r.parseHeaderV1()
	case FormatVersionV2:
		return r.parseHeaderV2()
	default:
		return fmt.Errorf("%w: got %d, expected %d or %d", ErrUnsupportedVersion, r.version, FormatVersion, FormatVersionV2)
	}
}

// parseHeaderV1 handles the legacy layout: flags and header size follow the
// version directly, and there is no checksum.
func (r *StrandReader) parseHeaderV1() error {
	if err := binary.Read(r.file, binary.LittleEndian, &r.flags); err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = alignUp(int64(20) + int64(headerSize))
	return nil
}

// parseHeaderV2 reads the 64-byte fixed header, the JSON header, and unless
// disabled verifies the stored checksum against the data section.
func (r *StrandReader) parseHeaderV2() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	fixed := make([]byte, FixedHeaderSizeV2)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersionV2 {
		return fmt.Errorf("version mismatch in fixed header: got %d, expected %d", version, FormatVersionV2)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	storedSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(r.checksum[:], fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	if storedSize > uint64(1)<<62 {
		return fmt.Errorf("data size too large: %d", storedSize)
	}
	r.storedSize = int64(storedSize)

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = alignUp(int64(FixedHeaderSizeV2) + int64(headerSize))

	if !r.opts.SkipChecksumValidation {
		stored, err := r.readStored()
		if err != nil {
			return fmt.Errorf("failed to read data section for checksum: %w", err)
		}
		if err := ValidateChecksum(ComputeChecksum(stored), r.checksum); err != nil {
			return err
		}
	}
	return nil
}

// readStored returns the data section exactly as it sits on disk.
func (r *StrandReader) readStored() ([]byte, error) {
	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	stored := make([]byte, r.storedSize)
	if _, err := io.ReadFull(r.file, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// inflate decompresses the data section into memory.
func (r *StrandReader) inflate() error {
	if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to data section: %w", err)
	}
	gz, err := gzip.NewReader(io.LimitReader(r.file, r.storedSize))
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	inflated, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("failed to decompress data section: %w", err)
	}
	r.inflated = inflated
	return nil
}

// Header returns the parsed file header.
func (r *StrandReader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *StrandReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames lists every tensor in the file, in table order.
func (r *StrandReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the table entry for one tensor.
func (r *StrandReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("tensor %q not found", name)
}

// ReadTensorData returns the raw bytes of one tensor.
func (r *StrandReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > r.dataSize {
		return nil, fmt.Errorf("%w: tensor %q: offset %d, size %d, data section %d",
			ErrOutOfBounds, name, meta.Offset, meta.Size, r.dataSize)
	}

	if r.inflated != nil {
		data := make([]byte, meta.Size)
		copy(data, r.inflated[meta.Offset:meta.Offset+meta.Size])
		return data, nil
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor reads one tensor into a freshly allocated RawTensor on the
// backend's device.
func (r *StrandReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	return tensorFromBytes(meta, data, backend)
}

// ReadStateDict loads every tensor in the file.
func (r *StrandReader) ReadStateDict(backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
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

// Close closes the reader and the underlying file. Safe to call twice.
func (r *StrandReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.inflated = nil
	return r.file.Close()
}

// tensorFromBytes materializes a RawTensor from a table entry and its data.
func tensorFromBytes(meta *TensorMeta, data []byte, backend tensor.Backend) (*tensor.RawTensor, error) {
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", meta.Name, err)
	}

	raw, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}
	if int64(raw.ByteSize()) != meta.Size {
		return nil, fmt.Errorf("tensor %s: table size %d does not match shape %v of %s (%d bytes)",
			meta.Name, meta.Size, meta.Shape, meta.DType, raw.ByteSize())
	}
	copy(raw.Data(), data)
	return raw, nil
}

// alignUp rounds pos up to the next HeaderAlignment boundary.
func alignUp(pos int64) int64 {
	return (pos + HeaderAlignment - 1) / HeaderAlignment * HeaderAlignment
}

// ReadFrom reads a state dictionary from a stream: the counterpart of
// WriteTo. Both layouts are handled; v2 checksums are always verified since
// the data is in memory anyway.
func ReadFrom(src io.Reader, backend tensor.Backend) (map[string]*tensor.RawTensor, Header, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(src, magic); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, Header{}, fmt.Errorf("%w: got %q", ErrInvalidMagic, string(magic))
	}

	var version uint32
	if err := binary.Read(src, binary.LittleEndian, &version); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read version: %w", err)
	}

	var (
		flags      uint32
		headerSize uint64
		storedSize int64 // known up front for v2 only
		checksum   [32]byte
		jsonStart  int64
	)

	switch version {
	case FormatVersion:
		if err := binary.Read(src, binary.LittleEndian, &flags); err != nil {
			return nil, Header{}, fmt.Errorf("failed to read flags: %w", err)
		}
		if err := binary.Read(src, binary.LittleEndian, &headerSize); err != nil {
			return nil, Header{}, fmt.Errorf("failed to read header size: %w", err)
		}
		jsonStart = 20
	case FormatVersionV2:
		rest := make([]byte, FixedHeaderSizeV2-8)
		if _, err := io.ReadFull(src, rest); err != nil {
			return nil, Header{}, fmt.Errorf("failed to read fixed header: %w", err)
		}
		flags = binary.LittleEndian.Uint32(rest[0:4])
		headerSize = binary.LittleEndian.Uint64(rest[8:16])
		storedSize = int64(binary.LittleEndian.Uint64(rest[16:24]))
		copy(checksum[:], rest[ChecksumOffsetV2-8:ChecksumOffsetV2-8+ChecksumSize])
		jsonStart = FixedHeaderSizeV2
	default:
		return nil, Header{}, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, version)
	}

	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(src, headerBytes); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if padding := alignUp(jsonStart+int64(headerSize)) - (jsonStart + int64(headerSize)); padding > 0 {
		if _, err := io.CopyN(io.Discard, src, padding); err != nil {
			return nil, Header{}, fmt.Errorf("failed to skip padding: %w", err)
		}
	}

	if version == FormatVersion {
		// No size field in v1: the data section spans the table exactly.
		for _, meta := range header.Tensors {
			if end := meta.Offset + meta.Size; end > storedSize {
				storedSize = end
			}
		}
	}

	stored := make([]byte, storedSize)
	if _, err := io.ReadFull(src, stored); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read data section: %w", err)
	}

	if version == FormatVersionV2 {
		if err := ValidateChecksum(ComputeChecksum(stored), checksum); err != nil {
			return nil, Header{}, err
		}
	}

	data := stored
	if flags&FlagCompressed != 0 {
		gz, err := gzip.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, Header{}, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		data, err = io.ReadAll(gz)
		if closeErr := gz.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, Header{}, fmt.Errorf("failed to decompress data section: %w", err)
		}
	}

	if err := ValidateHeader(&header, int64(len(data)), ValidationStrict); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for i := range header.Tensors {
		meta := &header.Tensors[i]
		raw, err := tensorFromBytes(meta, data[meta.Offset:meta.Offset+meta.Size], backend)
		if err != nil {
			return nil, Header{}, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, header, nil
}

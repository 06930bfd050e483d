package serialization

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/strand-ml/strand/internal/tensor"
)

const strandVersion = "0.3.0" // stamped into every file this build writes

// StrandWriter writes state dictionaries in .strand format.
type StrandWriter struct {
	file     *os.File
	compress bool
	closed   bool
}

// WriterOptions configures a StrandWriter.
type WriterOptions struct {
	// Compress gzips the data section. Compressed files cannot be
	// memory-mapped and require format v2.
	Compress bool
}

// NewStrandWriter creates a writer with default options (no compression).
func NewStrandWriter(path string) (*StrandWriter, error) {
	return NewStrandWriterWithOptions(path, WriterOptions{})
}

// NewStrandWriterWithOptions creates a writer with custom options.
func NewStrandWriterWithOptions(path string, opts WriterOptions) (*StrandWriter, error) {
	//nolint:gosec // G304: the destination path is caller-chosen by design
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &StrandWriter{file: file, compress: opts.Compress}, nil
}

// WriteStateDict writes a state dictionary in the current (v2) format.
func (w *StrandWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	return w.WriteStateDictWithHeader(stateDict, Header{
		ModelType: modelType,
		Metadata:  metadata,
	})
}

// WriteStateDictWithHeader writes a state dictionary with a caller-built
// header, which is how checkpoints attach CheckpointMeta. The header's
// FormatVersion selects the layout; zero means current (v2). The tensor
// table, timestamps, and version stamp are filled in here, so callers only
// set the fields they care about.
func (w *StrandWriter) WriteStateDictWithHeader(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	return writeArchive(w.file, stateDict, header, w.compress)
}

// Close closes the underlying file. Safe to call twice.
func (w *StrandWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo writes a v2 archive to an arbitrary io.Writer, for buffers or
// network connections. The output is byte-identical to an uncompressed
// StrandWriter file.
func WriteTo(dst io.Writer, stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	return writeArchive(dst, stateDict, Header{
		ModelType: modelType,
		Metadata:  metadata,
	}, false)
}

// buildTensorTable fills header.Tensors and returns the names in table
// order. Tensors are laid out sorted by name so identical state dicts
// produce identical files regardless of map iteration order.
func buildTensorTable(stateDict map[string]*tensor.RawTensor, header *Header) []string {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.Tensors = make([]TensorMeta, 0, len(names))
	var offset int64
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	return names
}

// writeArchive is the single serialization path behind every public write
// entry point.
func writeArchive(dst io.Writer, stateDict map[string]*tensor.RawTensor, header Header, compress bool) error {
	version := header.FormatVersion
	if version == 0 {
		version = FormatVersionV2
	}
	switch version {
	case FormatVersion:
		if compress {
			return fmt.Errorf("compression requires format v2")
		}
	case FormatVersionV2:
	default:
		return fmt.Errorf("%w: cannot write version %d", ErrUnsupportedVersion, version)
	}
	header.FormatVersion = version

	names := buildTensorTable(stateDict, &header)
	if header.StrandVersion == "" {
		header.StrandVersion = strandVersion
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	var data bytes.Buffer
	for _, name := range names {
		data.Write(stateDict[name].Data())
	}
	stored := data.Bytes()

	flags := headerFlags(&header, compress)
	if compress {
		var packed bytes.Buffer
		gz := gzip.NewWriter(&packed)
		if _, err := gz.Write(stored); err != nil {
			return fmt.Errorf("failed to compress data section: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		stored = packed.Bytes()
	}

	if version == FormatVersion {
		return writeLegacy(dst, headerJSON, flags, stored)
	}
	return writeCurrent(dst, headerJSON, flags, stored)
}

func headerFlags(header *Header, compress bool) uint32 {
	var flags uint32
	if compress {
		flags |= FlagCompressed
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil && header.CheckpointMeta.IsCheckpoint {
		flags |= FlagHasOptimizer
	}
	return flags
}

// writeLegacy emits the v1 layout: a 20-byte prefix (magic, version, flags,
// header size), the JSON header, padding to the alignment boundary, then
// tensor data. No checksum.
func writeLegacy(dst io.Writer, headerJSON []byte, flags uint32, data []byte) error {
	var prefix [20]byte
	copy(prefix[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(prefix[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(prefix[8:12], flags)
	binary.LittleEndian.PutUint64(prefix[12:20], uint64(len(headerJSON)))

	if _, err := dst.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write prefix: %w", err)
	}
	if _, err := dst.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	if err := writePadding(dst, int64(len(prefix))+int64(len(headerJSON))); err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// writeCurrent emits the v2 layout: a 64-byte fixed header carrying sizes
// and the SHA-256 of the stored data section, the JSON header, padding,
// then the data section.
func writeCurrent(dst io.Writer, headerJSON []byte, flags uint32, data []byte) error {
	checksum := ComputeChecksum(data)

	fixed := make([]byte, FixedHeaderSizeV2)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C..0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	if _, err := dst.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := dst.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	if err := writePadding(dst, int64(FixedHeaderSizeV2)+int64(len(headerJSON))); err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// writePadding advances dst from pos to the next HeaderAlignment boundary.
func writePadding(dst io.Writer, pos int64) error {
	padding := (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
	if padding == 0 {
		return nil
	}
	if _, err := dst.Write(make([]byte, padding)); err != nil {
		return fmt.Errorf("failed to write padding: %w", err)
	}
	return nil
}

// Package serialization implements the native .strand container for model
// weights and training checkpoints, plus SafeTensors interop.
//
// The current (v2) layout is:
//
//	0x00  magic "STRD"
//	0x04  format version (uint32 LE)
//	0x08  flags (uint32 LE)
//	0x0C  reserved
//	0x10  JSON header size (uint64 LE)
//	0x18  data section size (uint64 LE)
//	0x20  SHA-256 of the data section as stored
//	0x40  JSON header, then zero padding to a 64-byte boundary
//	      tensor data
//
// The JSON header carries the tensor table (name, dtype, shape, offset,
// size), provenance, free-form metadata, and optional checkpoint state.
// Offsets are relative to the start of the data section; when the
// FlagCompressed bit is set the section is one gzip stream and offsets
// refer to the inflated bytes. Legacy v1 files (20-byte prefix, no
// checksum) remain readable.
//
// Three access paths cover the usual cases: StrandWriter/StrandReader for
// files, WriteTo/ReadFrom for streams, and MmapReader for lazy zero-copy
// access to large uncompressed files.
//
// Example:
//
//	writer, err := serialization.NewStrandWriter("model.strand")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := writer.WriteStateDict(stateDict, "TransformerUnit", nil); err != nil {
//		log.Fatal(err)
//	}
//	writer.Close()
//
//	reader, err := serialization.NewStrandReader("model.strand")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer reader.Close()
//	stateDict, err = reader.ReadStateDict(backend)
package serialization

// Package firmware decodes the metadata stores embedded in Apple EFI ROM
// images.
//
// Two store families are supported, and a single image only ever carries
// one of them:
//
//   - Fsys: the Intel-era 0x800-byte store holding the serial number (ssn),
//     system order number (son) and a CRC-32 over the first 0x7FC bytes.
//   - SCfg: the T2-era store introduced by the "gfCS" header, holding the
//     serial (mNrS), SON (#doM) and registration number (ngeR).
//
// # Absence vs. failure
//
// Decoders never fail on garbage input. Missing signatures, truncated
// buffers and unterminated strings all degrade to empty Text fields or a
// record with Found set to false. Whether a missing field makes an image
// unusable is decided by the validation package, not here.
//
// # Ownership
//
// Every record copies the bytes it needs out of the source image, so a
// record stays valid after the caller discards or replaces the buffer.
//
// # Size classification
//
// ClassifySize reports how far a byte length is from the nearest valid ROM
// size in the doubling sequence 1 MiB, 2 MiB, ... 32 MiB:
//
//	c := firmware.ClassifySize(3*1024*1024+10, firmware.MinImageSize, firmware.MaxImageSize)
//	fmt.Println(c) // ">1048586"
package firmware

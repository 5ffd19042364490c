//go:build ignore

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/muurk/mefit/internal/firmware"
	"github.com/muurk/mefit/internal/firmware/firmwaretest"
)

// Writes synthetic Intel and T2 images for trying commands without a real
// dump. The images carry only the structures mefit decodes.
func main() {
	outDir := flag.String("out", "fixtures", "Output directory")
	serial := flag.String("serial", "C02ABCDEFGHJ", "Serial number to embed")
	son := flag.String("son", "MJLQ2LL/A", "System order number to embed")
	size := flag.Int("size", 0x800000, "Image size in bytes")
	fsysOffset := flag.Int("fsys-offset", 0x3A000, "Offset of the Fsys store in the Intel image")
	stale := flag.Bool("stale-crc", false, "Corrupt the Fsys CRC")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Printf("Error creating %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	store := firmwaretest.FsysStore(*serial, *son)
	if *stale {
		store = firmwaretest.CorruptCRC(store)
	}

	t2Size := *size
	if min := firmware.SCfgExpectedBase + firmware.SCfgExpectedLength; t2Size < min {
		t2Size = 0x400000
	}

	images := map[string][]byte{
		"intel.rom": firmwaretest.IntelImage(*size, *fsysOffset, store),
		"t2.rom": firmwaretest.T2Image(t2Size, firmware.SCfgExpectedBase,
			firmwaretest.SCfgStore(*serial, *son, "REG0001"), "iBoot-7429.61.2"),
		"fsys.bin": store,
	}

	for name, data := range images {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(data))
	}
}

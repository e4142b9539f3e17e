package device

import (
	"fmt"

	"github.com/bigbag/rvlink-flasher/embedded"
)

// Profile describes one supported chip: its identification, flash geometry
// and the loader stub used for probe-assisted programming. Profiles are
// read-only configuration; the flash size reported by the probe at attach
// time overrides FlashSize when non-zero.
type Profile struct {
	Name      string
	ID        uint16
	BlockSize uint32
	FlashSize uint32
	Loader    func() []byte
}

// Series returns the chip series byte (high byte of the ID), which selects
// option-byte masks.
func (p *Profile) Series() byte { return byte(p.ID >> 8) }

var profiles = []Profile{
	{Name: "CH32V003J4M6", ID: 0x0033, BlockSize: 64, FlashSize: 16 * 1024, Loader: embedded.LoaderV003},
	{Name: "CH32V003A4M6", ID: 0x0032, BlockSize: 64, FlashSize: 16 * 1024, Loader: embedded.LoaderV003},
	{Name: "CH32V003F4U6", ID: 0x0031, BlockSize: 64, FlashSize: 16 * 1024, Loader: embedded.LoaderV003},
	{Name: "CH32V003F4P6", ID: 0x0030, BlockSize: 64, FlashSize: 16 * 1024, Loader: embedded.LoaderV003},

	{Name: "CH32V103", ID: 0x2500, BlockSize: 128, FlashSize: 64 * 1024, Loader: embedded.LoaderV103},

	{Name: "CH32V203C8U6", ID: 0x2030, BlockSize: 256, FlashSize: 64 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203C8T6", ID: 0x2031, BlockSize: 256, FlashSize: 64 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203K8T6", ID: 0x2032, BlockSize: 256, FlashSize: 64 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203C6T6", ID: 0x2033, BlockSize: 256, FlashSize: 32 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203RBT6", ID: 0x2034, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203K6T6", ID: 0x2035, BlockSize: 256, FlashSize: 32 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203G6U6", ID: 0x2036, BlockSize: 256, FlashSize: 32 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203F6P6", ID: 0x2037, BlockSize: 256, FlashSize: 32 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203F8P6", ID: 0x203A, BlockSize: 256, FlashSize: 64 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V203G8R6", ID: 0x203B, BlockSize: 256, FlashSize: 64 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V208WBU6", ID: 0x2080, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V208RBT6", ID: 0x2081, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V208CBU6", ID: 0x2082, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V208GBU6", ID: 0x2083, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},

	{Name: "CH32V303VCT6", ID: 0x3030, BlockSize: 256, FlashSize: 256 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V303RCT6", ID: 0x3031, BlockSize: 256, FlashSize: 256 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V303RBT6", ID: 0x3033, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V303CBT6", ID: 0x3034, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V305RBT6", ID: 0x3050, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V305FBP6", ID: 0x3052, BlockSize: 256, FlashSize: 128 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V307VCT6", ID: 0x3070, BlockSize: 256, FlashSize: 256 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V307RCT6", ID: 0x3071, BlockSize: 256, FlashSize: 256 * 1024, Loader: embedded.LoaderV203},
	{Name: "CH32V307WCU6", ID: 0x3073, BlockSize: 256, FlashSize: 256 * 1024, Loader: embedded.LoaderV203},

	{Name: "CH32X033F8P6", ID: 0x035A, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035R8T6", ID: 0x0350, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035C8T6", ID: 0x0351, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035F8U6", ID: 0x035E, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035G8U6", ID: 0x0356, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035G8R6", ID: 0x035B, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
	{Name: "CH32X035F7P6", ID: 0x0357, BlockSize: 256, FlashSize: 62 * 1024, Loader: embedded.LoaderX035},
}

// Lookup resolves a chip ID reported at attach time to its profile.
func Lookup(id uint16) (*Profile, error) {
	for i := range profiles {
		if profiles[i].ID == id {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("unsupported chip (ID 0x%04X)", id)
}

// All returns the supported profiles, for the CLI listing.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

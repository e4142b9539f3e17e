package embedded

import (
	_ "embed"
)

//go:embed loader_v003.bin
var loaderV003 []byte

//go:embed loader_v103.bin
var loaderV103 []byte

//go:embed loader_v203.bin
var loaderV203 []byte

//go:embed loader_x035.bin
var loaderX035 []byte

// LoaderV003 returns the flash-loader stub for the CH32V003 family.
func LoaderV003() []byte { return loaderV003 }

// LoaderV103 returns the flash-loader stub for the CH32V103 family.
func LoaderV103() []byte { return loaderV103 }

// LoaderV203 returns the flash-loader stub shared by the CH32V2xx and
// CH32V3xx families.
func LoaderV203() []byte { return loaderV203 }

// LoaderX035 returns the flash-loader stub for the CH32X033/X035 family.
func LoaderX035() []byte { return loaderX035 }

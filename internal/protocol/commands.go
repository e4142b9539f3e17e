package protocol

// WCH-Link USB identifiers.
const (
	VendorID   = 0x1A86
	ProductRV  = 0x8010 // PID in RISC-V mode
	ProductARM = 0x8012 // PID in ARM mode

	PacketSize = 1024

	EndpointCmdOut = 0x01
	EndpointCmdIn  = 0x81
	EndpointRawOut = 0x02
	EndpointRawIn  = 0x82
)

// Every command starts with this header byte.
const CmdHeader = 0x81

// Command families (second byte).
const (
	CmdSetRange   = 0x01 // set address/length for a raw data transfer
	CmdDataFlow   = 0x02 // erase and raw-transfer phase markers
	CmdOptionBits = 0x06 // read protection / option bytes
	CmdRegister   = 0x08 // DM register read/write
	CmdDisconnect = 0x0B // release target
	CmdControl    = 0x0D // probe control and chip attach
	CmdChipData   = 0x11 // chip metadata (flash size)
	CmdModeSwitch = 0xFF // ARM/RISC-V mode toggle
)

// CmdControl subcommands.
const (
	CtlGetInfo     = 0x01
	CtlAttach      = 0x02
	CtlDetach      = 0x03
	CtlPower3v3On  = 0x09
	CtlPower3v3Off = 0x0A
	CtlPower5vOn   = 0x0B
	CtlPower5vOff  = 0x0C
	CtlUnbrick     = 0x0F
	CtlShutdown    = 0xFF
)

// CmdDataFlow subcommands.
const (
	FlowEraseChip  = 0x01
	FlowDataFollow = 0x04
	FlowLoaderPush = 0x05
	FlowLoaderDone = 0x07
)

// WCH-LinkE reports this device code in its info reply.
const LinkDeviceE = 0x12

// LinkInfo asks the probe for its type and firmware version.
func LinkInfo() []byte { return []byte{CmdHeader, CmdControl, 0x01, CtlGetInfo} }

// Attach puts the target on hold and reports its chip identification.
func Attach() []byte { return []byte{CmdHeader, CmdControl, 0x01, CtlAttach} }

// Unbrick power-cycles a locked-down target so the debug interface answers.
func Unbrick() []byte { return []byte{CmdHeader, CmdControl, 0x01, CtlUnbrick, 0x09} }

// Detach and Shutdown together release the target; both are sent on every
// session teardown.
func Detach() []byte   { return []byte{CmdHeader, CmdDisconnect, 0x01, 0x01} }
func Shutdown() []byte { return []byte{CmdHeader, CmdControl, 0x01, CtlShutdown} }

// Power rail control on the probe side.
func Power3v3(on bool) []byte {
	if on {
		return []byte{CmdHeader, CmdControl, 0x01, CtlPower3v3On}
	}
	return []byte{CmdHeader, CmdControl, 0x01, CtlPower3v3Off}
}

func Power5v(on bool) []byte {
	if on {
		return []byte{CmdHeader, CmdControl, 0x01, CtlPower5vOn}
	}
	return []byte{CmdHeader, CmdControl, 0x01, CtlPower5vOff}
}

// ChipData requests chip metadata; the flash size in KB is returned
// big-endian in reply bytes 2..3.
func ChipData(mark byte) []byte { return []byte{CmdHeader, CmdChipData, 0x01, mark} }

// QueryProtection asks whether read protection is active (reply[3] == 0x01).
func QueryProtection() []byte { return []byte{CmdHeader, CmdOptionBits, 0x01, 0x01} }

// EraseChip triggers a whole-chip erase on the probe side.
func EraseChip() []byte { return []byte{CmdHeader, CmdDataFlow, 0x01, FlowEraseChip} }

// FlowMarker emits one of the raw-transfer phase markers.
func FlowMarker(sub byte) []byte { return []byte{CmdHeader, CmdDataFlow, 0x01, sub} }

// ModeSwitchARM and ModeSwitchRV toggle the probe firmware personality.
// The RISC-V switch is addressed to the probe while it enumerates with the
// ARM-mode product ID.
func ModeSwitchARM() []byte { return []byte{CmdHeader, CmdModeSwitch, 0x01, 0x41} }
func ModeSwitchRV() []byte  { return []byte{CmdHeader, CmdModeSwitch, 0x01, 0x52} }

// Option-byte write masks differ per chip series; the first payload byte
// selects protect (0x03) or unprotect (0x02).
func OptionBits(protect bool, series byte) []byte {
	op := byte(0x02)
	if protect {
		op = 0x03
	}
	mask := byte(0xFF)
	switch series {
	case 0x00:
		mask = 0xF7
	case 0x20, 0x30:
		mask = 0x3F
	}
	return []byte{CmdHeader, CmdOptionBits, 0x08, op, mask, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

// NrstAsGPIO reconfigures the nRST pin (CH32V003 only).
func NrstAsGPIO(gpio bool) []byte {
	if gpio {
		return []byte{CmdHeader, CmdOptionBits, 0x08, 0x02, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	}
	return []byte{CmdHeader, CmdOptionBits, 0x08, 0x02, 0xF7, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bigbag/rvlink-flasher/internal/console"
	"github.com/bigbag/rvlink-flasher/internal/debug"
	"github.com/bigbag/rvlink-flasher/internal/device"
	"github.com/bigbag/rvlink-flasher/internal/flash"
	"github.com/bigbag/rvlink-flasher/internal/link"
	"github.com/bigbag/rvlink-flasher/internal/protocol"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verboseFlag bool
	directFlag  bool
	bootFlag    bool
	verifyFlag  bool
	portFlag    string
	baudFlag    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rvlink-flasher",
		Short: "Flash CH32V/CH32X RISC-V microcontrollers with a WCH-LinkE",
		Long: `rvlink-flasher programs WCH CH32V and CH32X RISC-V microcontrollers
through a WCH-LinkE debug probe, using the chip's on-die debug module.

The per-family flash loader stubs are embedded in this tool; you only
need to provide the firmware.bin file.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				log.SetLevel(log.TraceLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log wire traffic")

	flashCmd := &cobra.Command{
		Use:   "flash <firmware.bin>",
		Short: "Write a firmware image to code flash",
		Long: `Write a firmware image to the target's code flash.

By default the embedded loader stub is uploaded to target RAM and the
probe streams the image through it, verifying as it goes. With --direct
every word is programmed through the debug module instead and the image
is read back for verification.`,
		Args: cobra.ExactArgs(1),
		RunE: runFlash,
	}
	flashCmd.Flags().BoolVar(&directFlag, "direct", false, "Program word-by-word through the debug module")
	flashCmd.Flags().BoolVar(&bootFlag, "boot", false, "Program the boot sector instead of code flash (implies --direct)")
	flashCmd.Flags().BoolVar(&verifyFlag, "verify", true, "Verify after flashing (--direct mode)")

	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase the whole code flash",
		RunE:  runErase,
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Remove read protection (erases the chip)",
		RunE:  runProtection(false),
	}

	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Set read protection",
		RunE:  runProtection(true),
	}

	unbrickCmd := &cobra.Command{
		Use:   "unbrick",
		Short: "Power-cycle a locked-up target until it answers",
		RunE:  runUnbrick,
	}

	pinCmd := &cobra.Command{
		Use:       "pin [gpio|reset]",
		Short:     "Configure the nRST pin as GPIO or reset (CH32V003 only)",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"gpio", "reset"},
		RunE:      runPin,
	}

	powerCmd := &cobra.Command{
		Use:   "power [3v3|5v] [on|off]",
		Short: "Switch a target power rail on the probe",
		Args:  cobra.ExactArgs(2),
		RunE:  runPower,
	}

	modeCmd := &cobra.Command{
		Use:       "mode [arm|rv]",
		Short:     "Switch the probe between ARM and RISC-V firmware modes",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"arm", "rv"},
		RunE:      runMode,
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show probe and target info",
		RunE:  runInfo,
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List supported chips",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range device.All() {
				fmt.Printf("  %-14s ID 0x%04X  block %3d  flash %3d KB\n",
					p.Name, p.ID, p.BlockSize, p.FlashSize/1024)
			}
		},
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Dump target serial output from the probe's UART bridge",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port of the UART bridge")
	monitorCmd.Flags().IntVarP(&baudFlag, "baud", "b", console.DefaultBaudRate, "Baud rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := console.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rvlink-flasher %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(flashCmd, eraseCmd, unlockCmd, lockCmd, unbrickCmd,
		pinCmd, powerCmd, modeCmd, infoCmd, devicesCmd, monitorCmd, listCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withTarget opens the probe, attaches the target and guarantees the
// double disconnect on every path out.
func withTarget(fn func(d *link.Device, s *debug.Session) error) error {
	d, err := link.Open()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Identify(); err != nil {
		return err
	}
	fmt.Printf("Probe: WCH-LinkE v%s\n", d.Version)

	s := debug.NewSession(d)
	profile, err := s.Connect()
	if err != nil {
		return err
	}
	fmt.Printf("Target: %s (%d KB flash)\n", profile.Name, s.FlashSize()/1024)

	return fn(d, s)
}

func pageBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Flashing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func runFlash(cmd *cobra.Command, args []string) error {
	firmware, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read firmware file: %w", err)
	}
	fmt.Printf("Firmware: %s (%d bytes)\n", args[0], len(firmware))

	return withTarget(func(d *link.Device, s *debug.Session) error {
		var bar *progressbar.ProgressBar
		progress := func(page, total int) {
			if bar == nil {
				bar = pageBar(total)
			}
			bar.Set(page)
		}

		if directFlag || bootFlag {
			mode := debug.HaltModeErase
			if bootFlag {
				mode = debug.HaltModeFlashKeyed
			}
			if err := s.EnterHaltMode(mode); err != nil {
				return err
			}
			ctl := flash.New(s, flash.WithProgress(progress))
			base := uint32(protocol.CodeBase)
			if bootFlag {
				if err := ctl.Unlock(); err != nil {
					return err
				}
				if err := ctl.UnlockBoot(); err != nil {
					return err
				}
				base = protocol.BootBase
			}
			if err := ctl.FlashBlob(base, firmware); err != nil {
				return err
			}
			if bar != nil {
				bar.Finish()
			}
			fmt.Printf("\nSUCCESS: %d bytes written.\n", len(firmware))
			if verifyFlag {
				fmt.Println("Verifying ...")
				if err := ctl.VerifyBlob(base, firmware); err != nil {
					return err
				}
				fmt.Printf("SUCCESS: %d bytes verified.\n", len(firmware))
			}
			return nil
		}

		err := flash.FastProgram(d, s.Profile(), protocol.CodeBase, firmware, progress)
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Finish()
		}
		fmt.Printf("\nSUCCESS: %d bytes written and verified.\n", len(firmware))
		return nil
	})
}

func runErase(cmd *cobra.Command, args []string) error {
	return withTarget(func(d *link.Device, s *debug.Session) error {
		if err := s.EnterHaltMode(debug.HaltModeErase); err != nil {
			return err
		}
		fmt.Println("Performing whole chip erase ...")
		if err := flash.New(s).EraseChip(); err != nil {
			return err
		}
		fmt.Println("SUCCESS: Chip is erased.")
		return nil
	})
}

func runProtection(protect bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withTarget(func(d *link.Device, s *debug.Session) error {
			if _, err := d.Command(protocol.OptionBits(protect, s.Profile().Series())); err != nil {
				return err
			}
			if protect {
				fmt.Println("SUCCESS: Read protection set.")
			} else {
				fmt.Println("SUCCESS: Read protection removed.")
			}
			return nil
		})
	}
}

func runUnbrick(cmd *cobra.Command, args []string) error {
	d, err := link.Open()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Identify(); err != nil {
		return err
	}
	fmt.Println("Unlocking chip ...")
	if _, err := d.Command(protocol.Unbrick()); err != nil {
		return err
	}
	fmt.Println("SUCCESS: Chip is unlocked.")
	return nil
}

func runPin(cmd *cobra.Command, args []string) error {
	gpio := args[0] == "gpio"
	return withTarget(func(d *link.Device, s *debug.Session) error {
		if s.Profile().Series() != 0x00 {
			return fmt.Errorf("nRST pin option is not available for %s", s.Profile().Name)
		}
		if err := s.EnterHaltMode(debug.HaltModeErase); err != nil {
			return err
		}
		if _, err := d.Command(protocol.NrstAsGPIO(gpio)); err != nil {
			return err
		}
		if gpio {
			fmt.Println("SUCCESS: nRST pin is now a GPIO pin.")
		} else {
			fmt.Println("SUCCESS: nRST pin is now a reset pin.")
		}
		return nil
	})
}

func runPower(cmd *cobra.Command, args []string) error {
	on := args[1] == "on"
	if args[1] != "on" && args[1] != "off" {
		return fmt.Errorf("power state must be on or off, got %q", args[1])
	}

	var req []byte
	switch args[0] {
	case "3v3":
		req = protocol.Power3v3(on)
	case "5v":
		req = protocol.Power5v(on)
	default:
		return fmt.Errorf("power rail must be 3v3 or 5v, got %q", args[0])
	}

	d, err := link.Open()
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.Command(req); err != nil {
		return err
	}
	fmt.Printf("SUCCESS: %s rail switched %s.\n", args[0], args[1])
	return nil
}

func runMode(cmd *cobra.Command, args []string) error {
	if args[0] == "rv" {
		fmt.Println("Switching WCH-Link to RISC-V mode ...")
		if err := link.SwitchToRV(); err != nil {
			return err
		}
		fmt.Println("DONE: Probe re-enumerates in a couple of seconds.")
		return nil
	}

	d, err := link.Open()
	if err != nil {
		return err
	}
	defer d.Close()
	fmt.Println("Switching WCH-Link to ARM mode ...")
	if err := d.SwitchToARM(); err != nil {
		return err
	}
	fmt.Println("DONE: Check if the blue LED lights up.")
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withTarget(func(d *link.Device, s *debug.Session) error {
		p := s.Profile()
		fmt.Printf("  Chip ID:    0x%04X\n", p.ID)
		fmt.Printf("  Block size: %d bytes\n", p.BlockSize)
		fmt.Printf("  Flash:      %d KB\n", s.FlashSize()/1024)
		return nil
	})
}

func runMonitor(cmd *cobra.Command, args []string) error {
	portName := portFlag
	if portName == "" {
		ports, err := console.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			return fmt.Errorf("no serial ports found")
		}
		portName = ports[0]
	}
	fmt.Printf("Monitoring %s @ %d baud (Ctrl-C to stop)\n", portName, baudFlag)
	return console.Monitor(portName, baudFlag, os.Stdout)
}

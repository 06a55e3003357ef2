//go:build !linux

package raspberry

// Open returns an emulated chip. The gpio character device only exists on
// linux; development machines run against the emulator.
func Open(device string) (Chip, error) {
	return NewEmulator(), nil
}

package udefrag

import "unicode/utf16"

// DecodeUTF16Label decodes a little-endian UTF-16 volume-label buffer into a
// string, stopping at the first NUL char — the format NTFS, FAT32 and UDF
// all store their volume label in (§6.1's GetVolumeInformation.Label).
func DecodeUTF16Label(raw []byte, charCount int) string {
	units := make([]uint16, 0, charCount)

	for i := 0; i < charCount && i*2+1 < len(raw); i++ {
		unit := uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
		if unit == 0 {
			break
		}
		units = append(units, unit)
	}

	return string(utf16.Decode(units))
}

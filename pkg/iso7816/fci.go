package iso7816

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// FILE CONTROL INFORMATION (FCI) returned by SELECT according to ISO/IEC 7816-4.
//
// STRUCTURES:
// 1. FCI (File Control Information) - Tag '6F': A wrapper template.
// 2. FCP (File Control Parameters) - Tag '62': Technical attributes.
// 3. FMD (File Management Data) - Tag '64': Administrative data.
//
// The NBT applet answers with either no data or a small FCI; the templates are
// flattened into a single structure since the tag never nests them deeper.

// FileControlInfo is the flattened content of a SELECT response.
type FileControlInfo struct {
	FileSize         []byte // '80'
	FileDescriptor   []byte // '82'
	FileIdentifier   []byte // '83'
	DFName           []byte // '84'
	ApplicationLabel []byte // '50'
	Proprietary      []byte // 'A5' (re-encoded when constructed)

	// Unknown collects tags outside of the list above.
	Unknown []bertlv.TLV
}

// ParseFCI decodes the data field of a SELECT response.
// An empty input yields an empty FileControlInfo.
func ParseFCI(data []byte) (*FileControlInfo, error) {
	fci := &FileControlInfo{}
	if len(data) == 0 {
		return fci, nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	if err := fci.collect(packets); err != nil {
		return nil, err
	}
	return fci, nil
}

func (fci *FileControlInfo) collect(packets []bertlv.TLV) error {
	for _, p := range packets {
		switch strings.ToUpper(p.Tag) {
		case "6F", "62", "64":
			if err := fci.collect(p.TLVs); err != nil {
				return err
			}
		case "80":
			fci.FileSize = p.Value
		case "82":
			fci.FileDescriptor = p.Value
		case "83":
			fci.FileIdentifier = p.Value
		case "84":
			fci.DFName = p.Value
		case "50":
			fci.ApplicationLabel = p.Value
		case "A5":
			raw, err := rawValue(p)
			if err != nil {
				return fmt.Errorf("tag A5: %w", err)
			}
			fci.Proprietary = raw
		default:
			fci.Unknown = append(fci.Unknown, p)
		}
	}
	return nil
}

func rawValue(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) > 0 {
		return bertlv.Encode(p.TLVs)
	}
	return p.Value, nil
}

// Describe renders the known fields, one per line.
func (fci *FileControlInfo) Describe() string {
	var lines []string
	add := func(name, tag string, v []byte, ascii bool) {
		if len(v) == 0 {
			return
		}
		if ascii {
			lines = append(lines, fmt.Sprintf("    - %s (%s): %X (%q)", name, tag, v, safeASCII(v)))
			return
		}
		lines = append(lines, fmt.Sprintf("    - %s (%s): %X", name, tag, v))
	}

	add("FileSize", "80", fci.FileSize, false)
	add("FileDescriptor", "82", fci.FileDescriptor, false)
	add("FileIdentifier", "83", fci.FileIdentifier, false)
	add("DFName", "84", fci.DFName, true)
	add("ApplicationLabel", "50", fci.ApplicationLabel, true)
	add("Proprietary", "A5", fci.Proprietary, false)
	for _, t := range fci.Unknown {
		lines = append(lines, fmt.Sprintf("    - Unknown Tag %s: %X", t.Tag, t.Value))
	}

	if len(lines) == 0 {
		return "    - No FCI data."
	}
	return strings.Join(lines, "\n")
}

func safeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}

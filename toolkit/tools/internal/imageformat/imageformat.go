// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package imageformat identifies virtual disk image formats from their on-disk signatures.
package imageformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	FormatQcow2 = "qcow2"
	FormatVmdk  = "vmdk"
	FormatVhdx  = "vhdx"
	FormatVdi   = "vdi"
	// FormatVpc is qemu's name for VHD.
	FormatVpc = "vpc"
	FormatRaw = "raw"

	VhdFooterSize    = 512
	VhdFileSignature = "conectix"
	VhdFileVersion   = 0x00010000

	vdiSignatureOffset = 0x40
	vdiSignature       = 0xbeda107f
	headerSize         = vdiSignatureOffset + 4
)

var (
	qcow2Magic = []byte("QFI\xfb")
	vmdkMagic  = []byte("KDMV")
	vhdxMagic  = []byte("vhdxfile")
)

type VhdFooter struct {
	Cookie             [8]byte
	Features           uint32
	FileFormatVersion  uint32
	DataOffset         uint64
	TimeStamp          uint32
	CreatorApplication [4]byte
	CreatorVersion     [4]byte
	CreatorHostOS      [4]byte
	OriginalSize       uint64
	CurrentSize        uint64
	Cylinder           uint16
	Heads              uint8
	SectorsPerCylinder uint8
	DiskType           uint32
	Checksum           [4]byte
	UniqueId           [16]byte
	SavedState         uint8
	Reserved           [427]byte
}

var (
	ErrVhdFileTooSmall       = errors.New("file is too small to be a VHD")
	ErrVhdWrongFileSignature = errors.New("footer does not have correct VHD file signature")
	ErrVhdWrongFileVersion   = errors.New("VHD footer has unsupported file format version")
)

// DetectFormat returns the format of a disk image, or FormatRaw when it carries none of the
// known signatures.
func DetectFormat(filename string) (string, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	header := make([]byte, headerSize)
	headerCount, err := io.ReadFull(fd, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read image header (%s):\n%w", filename, err)
	}
	header = header[:headerCount]

	switch {
	case bytes.HasPrefix(header, qcow2Magic):
		return FormatQcow2, nil

	case bytes.HasPrefix(header, vmdkMagic):
		return FormatVmdk, nil

	case bytes.HasPrefix(header, vhdxMagic):
		return FormatVhdx, nil

	case bytes.HasPrefix(header, []byte(VhdFileSignature)):
		// Dynamic VHDs keep a copy of the footer at the start of the file.
		return FormatVpc, nil

	case len(header) == headerSize && binary.LittleEndian.Uint32(header[vdiSignatureOffset:]) == vdiSignature:
		return FormatVdi, nil
	}

	_, err = readVhdFooter(fd)
	switch {
	case err == nil:
		return FormatVpc, nil

	case errors.Is(err, ErrVhdFileTooSmall), errors.Is(err, ErrVhdWrongFileSignature),
		errors.Is(err, ErrVhdWrongFileVersion):
		return FormatRaw, nil

	default:
		return "", fmt.Errorf("failed to read image footer (%s):\n%w", filename, err)
	}
}

func ParseVhdFileFooter(filename string) (VhdFooter, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return VhdFooter{}, err
	}
	defer fd.Close()

	return readVhdFooter(fd)
}

func readVhdFooter(fd *os.File) (VhdFooter, error) {
	stat, err := fd.Stat()
	if err != nil {
		return VhdFooter{}, err
	}

	if stat.Size() < VhdFooterSize {
		return VhdFooter{}, ErrVhdFileTooSmall
	}

	footerBytes := [VhdFooterSize]byte{}
	_, err = fd.ReadAt(footerBytes[:], stat.Size()-VhdFooterSize)
	if err != nil {
		return VhdFooter{}, err
	}

	var footer VhdFooter
	err = binary.Read(bytes.NewReader(footerBytes[:]), binary.BigEndian, &footer)
	if err != nil {
		return VhdFooter{}, err
	}

	if string(footer.Cookie[:]) != VhdFileSignature {
		return VhdFooter{}, ErrVhdWrongFileSignature
	}

	if footer.FileFormatVersion != VhdFileVersion {
		return VhdFooter{}, ErrVhdWrongFileVersion
	}

	return footer, nil
}

package xfsformat

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/diskfs/xfsro/xfs/xfserr"
)

const (
	sbMagic uint32 = 0x58465342 // "XFSB"
	// sbMinVersion is the minimum sb_versionnum low nibble this driver
	// accepts; earlier on-disk formats are out of scope.
	sbMinVersion uint16 = 5
	sbVersionNumMask uint16 = 0x000f
	// sbReadLen covers every v5 superblock field (up to meta_uuid at byte
	// 264) plus slack; the superblock always lives at byte 0 of AG 0.
	sbReadLen = 512
)

// Superblock holds the decoded geometry every other component needs.
// Constructed once via Load and treated as immutable thereafter, held by
// reference and shared across every view the mount creates.
type Superblock struct {
	Blocksize  uint32
	DBlocks    uint64
	RBlocks    uint64
	RExtents   uint64
	UUID       uuid.UUID
	LogStart   uint64
	RootIno    uint64
	RBmIno     uint64
	RSumIno    uint64
	RExtSize   uint32
	AGBlocks   uint32
	AGCount    uint32
	RBmBlocks  uint32
	LogBlocks  uint32
	VersionNum uint16
	SectSize   uint16
	InodeSize  uint16
	InoPBlock  uint16
	BlockLog   uint8
	SectLog    uint8
	InodeLog   uint8
	InoPBLog   uint8
	AGBlkLog   uint8
	RExtsLog   uint8
	InProgress uint8
	IMaxPct    uint8
	Label      string
	ICount     uint64
	IFree      uint64
	FdBlocks   uint64
	FrExtents  uint64
	UQuotaIno  uint64
	GQuotaIno  uint64
	QFlags     uint16
	Flags      uint8
	SharedVn   uint8
	InoAlignMt uint32
	Unit       uint32
	Width      uint32
	DirBlkLog  uint8
	LogSectLog uint8
	LogSectSize uint16
	LogSunit   uint32

	FeaturesCompat      uint32
	FeaturesROCompat    uint32
	FeaturesIncompat    uint32
	FeaturesLogIncompat uint32
	CRC                 uint32
	SpinoAlign          uint32
	PQuotaIno           uint64
	LSN                 uint64
	MetaUUID            uuid.UUID
}

// Load reads block 0 from r, validates the magic and version, and decodes
// the geometry fields.
func Load(r io.ReaderAt) (*Superblock, error) {
	buf := make([]byte, sbReadLen)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading superblock", err)
	}

	magic := be32(buf[0:4])
	if magic != sbMagic {
		return nil, xfserr.New(xfserr.DecodeFailure, fmt.Sprintf("bad superblock magic %#x", magic))
	}

	sb := &Superblock{}
	sb.Blocksize = be32(buf[4:8])
	sb.DBlocks = be64(buf[8:16])
	sb.RBlocks = be64(buf[16:24])
	sb.RExtents = be64(buf[24:32])
	rawUUID, err := Uuid128(buf[32:48])
	if err != nil {
		return nil, err
	}
	sb.UUID = uuid.UUID(rawUUID)
	sb.LogStart = be64(buf[48:56])
	sb.RootIno = be64(buf[56:64])
	sb.RBmIno = be64(buf[64:72])
	sb.RSumIno = be64(buf[72:80])
	sb.RExtSize = be32(buf[80:84])
	sb.AGBlocks = be32(buf[84:88])
	sb.AGCount = be32(buf[88:92])
	sb.RBmBlocks = be32(buf[92:96])
	sb.LogBlocks = be32(buf[96:100])
	sb.VersionNum = be16(buf[100:102])
	sb.SectSize = be16(buf[102:104])
	sb.InodeSize = be16(buf[104:106])
	sb.InoPBlock = be16(buf[106:108])
	sb.Label = labelFromBytes(buf[108:120])
	sb.BlockLog = buf[120]
	sb.SectLog = buf[121]
	sb.InodeLog = buf[122]
	sb.InoPBLog = buf[123]
	sb.AGBlkLog = buf[124]
	sb.RExtsLog = buf[125]
	sb.InProgress = buf[126]
	sb.IMaxPct = buf[127]
	sb.ICount = be64(buf[128:136])
	sb.IFree = be64(buf[136:144])
	sb.FdBlocks = be64(buf[144:152])
	sb.FrExtents = be64(buf[152:160])
	sb.UQuotaIno = be64(buf[160:168])
	sb.GQuotaIno = be64(buf[168:176])
	sb.QFlags = be16(buf[176:178])
	sb.Flags = buf[178]
	sb.SharedVn = buf[179]
	sb.InoAlignMt = be32(buf[180:184])
	sb.Unit = be32(buf[184:188])
	sb.Width = be32(buf[188:192])
	sb.DirBlkLog = buf[192]
	sb.LogSectLog = buf[193]
	sb.LogSectSize = be16(buf[194:196])
	sb.LogSunit = be32(buf[196:200])
	// sb_features2 / sb_bad_features2 at 200:208, legacy, ignored.
	sb.FeaturesCompat = be32(buf[208:212])
	sb.FeaturesROCompat = be32(buf[212:216])
	sb.FeaturesIncompat = be32(buf[216:220])
	sb.FeaturesLogIncompat = be32(buf[220:224])
	sb.CRC = be32(buf[224:228])
	sb.SpinoAlign = be32(buf[228:232])
	sb.PQuotaIno = be64(buf[232:240])
	sb.LSN = be64(buf[240:248])
	rawMetaUUID, err := Uuid128(buf[248:264])
	if err != nil {
		return nil, err
	}
	sb.MetaUUID = uuid.UUID(rawMetaUUID)

	if sb.VersionNum&sbVersionNumMask < sbMinVersion {
		return nil, xfserr.New(xfserr.NotSupported, fmt.Sprintf("unsupported xfs version %d", sb.VersionNum&sbVersionNumMask))
	}
	if sb.Blocksize == 0 || sb.AGBlocks == 0 {
		return nil, xfserr.New(xfserr.DecodeFailure, "degenerate superblock geometry")
	}

	return sb, nil
}

// labelFromBytes trims sb_fname's trailing NUL padding; the field is a
// fixed 12-byte ASCII buffer, not a length-prefixed string.
func labelFromBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// FsbToOffset converts a filesystem-block number (AG-packed: high AGBlkLog
// bits are the AG index, the rest is the AG-relative block) to a byte
// offset in the backing image.
func (sb *Superblock) FsbToOffset(fsb uint64) uint64 {
	agIndex := fsb >> sb.AGBlkLog
	agOffset := fsb & ((1 << sb.AGBlkLog) - 1)
	return (agIndex*uint64(sb.AGBlocks)+agOffset)*uint64(sb.Blocksize)
}

// AGBlockMask returns the mask selecting the AG-relative block bits of an
// FSB, i.e. (1<<AGBlkLog)-1.
func (sb *Superblock) AGBlockMask() uint64 {
	return (1 << sb.AGBlkLog) - 1
}

// AgOf returns the allocation group index of an inode number. Inode numbers
// pack (ag, ag-block, inode-in-cluster); the AG index occupies the top bits
// above agblklog+inopblog.
func (sb *Superblock) AgOf(ino uint64) uint32 {
	return uint32(ino >> (sb.AGBlkLog + sb.InoPBLog))
}

// InoToOffset converts an inode number to a byte offset in the backing
// image.
func (sb *Superblock) InoToOffset(ino uint64) uint64 {
	agBlkMask := sb.AGBlockMask()
	inoPerBlockMask := uint64(1<<sb.InoPBLog) - 1

	agIndex := ino >> (sb.AGBlkLog + sb.InoPBLog)
	agBlock := (ino >> sb.InoPBLog) & agBlkMask
	inBlock := ino & inoPerBlockMask

	return agIndex*uint64(sb.AGBlocks)*uint64(sb.Blocksize) +
		agBlock*uint64(sb.Blocksize) +
		inBlock*uint64(sb.InodeSize)
}

// DirBlockSize is the size in bytes of a directory block:
// blocksize << dirblklog.
func (sb *Superblock) DirBlockSize() uint32 {
	return sb.Blocksize << sb.DirBlkLog
}

package xfsformat

import "github.com/diskfs/xfsro/xfs/xfserr"

// Magic numbers recognized by this decoder, named after the mnemonics XFS
// itself uses for them. Unknown magic is a decode failure in every case;
// the mount stays up but the affected inode operation fails.
// Superblock (XFSB) and inode core (IN) magics are checked directly in
// superblock.go and xfsinode.Load; they are not repeated here.
const (
	MagicDirData   uint32 = 0x58443344 // "XD3D": plain directory data block
	MagicDirBlockA uint32 = 0x58444433 // "XDD3": combined block-form directory
	MagicDirBlockB uint32 = 0x58444233 // "XDB3": combined block-form directory (alternate)
	MagicDirLeaf1  uint32 = 0x33444c31 // "3DL1": LeafDir's single leaf block
	MagicDirLeafN  uint32 = 0x33444c4e // "3DLN": NodeDir/BtreeDir's chained leaf blocks
	MagicDirNode   uint32 = 0x33444e4f // "3DNO": directory da intermediate node
	MagicAttrLeaf  uint32 = 0x58414433 // "XAD3": attribute leaf block (every non-shortform shape)
	MagicAttrNode  uint32 = 0x58414e44 // "XAND": attribute da intermediate node
	MagicAttrFreeA uint32 = 0x5841464c // "XAFL": attribute free-index block, unused by this decoder
	MagicAttrFreeB uint32 = 0x33444631 // "3DF1": attribute free-index block, unused by this decoder
	MagicBmbtBlock uint32 = 0x424d4133 // "BMA3": extent B+-tree internal/leaf block
)

// CheckMagic32 returns a DecodeFailure naming what was expected if got
// doesn't match any of want.
func CheckMagic32(what string, got uint32, want ...uint32) error {
	for _, w := range want {
		if got == w {
			return nil
		}
	}
	return xfserr.New(xfserr.DecodeFailure, "bad "+what+" magic")
}

package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well known partition type GUIDs.
var (
	PartitionTypeUnused         = uuid.Nil
	PartitionTypeEFISystem      = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	PartitionTypeBIOSBoot       = uuid.MustParse("21686148-6449-6E6F-744E-656564454649")
	PartitionTypeMBRScheme      = uuid.MustParse("024DEE41-33E7-11D3-9D69-0008C781F39F")
	PartitionTypeMSReserved     = uuid.MustParse("E3C9E316-0B5C-4DB8-817D-F92DF00215AE")
	PartitionTypeBasicData      = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	PartitionTypeWinRecovery    = uuid.MustParse("DE94BBA4-06D1-4D40-A16A-BFD50179D6AC")
	PartitionTypeLinuxFS        = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	PartitionTypeLinuxRAID      = uuid.MustParse("A19D880F-05FC-4D3B-A006-743F0F84911E")
	PartitionTypeLinuxRootX64   = uuid.MustParse("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709")
	PartitionTypeLinuxRootA64   = uuid.MustParse("B921B045-1DF0-41C3-AF44-4C6F280D3FAE")
	PartitionTypeLinuxBoot      = uuid.MustParse("BC13C2FF-59E6-4262-A352-B275FD6F7172")
	PartitionTypeLinuxSwap      = uuid.MustParse("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")
	PartitionTypeLinuxLVM       = uuid.MustParse("E6D6D379-F507-44C2-A23C-238F2A3DF928")
	PartitionTypeLinuxHome      = uuid.MustParse("933AC7E1-2EB4-4F13-B844-0E14E2AEF915")
	PartitionTypeLinuxLUKS      = uuid.MustParse("CA7D7CCB-63ED-4C53-861C-1742536059CC")
	PartitionTypeFreeBSDBoot    = uuid.MustParse("83BD6B9D-7F41-11DC-BE0B-001560B84F0F")
	PartitionTypeFreeBSDZFS     = uuid.MustParse("516E7CBA-6ECF-11D6-8FF8-00022D09712B")
	PartitionTypeAppleHFSPlus   = uuid.MustParse("48465300-0000-11AA-AA11-00306543ECAC")
	PartitionTypeAppleAPFS      = uuid.MustParse("7C3457EF-0000-11AA-AA11-00306543ECAC")
	PartitionTypeAppleBoot      = uuid.MustParse("426F6F74-0000-11AA-AA11-00306543ECAC")
	PartitionTypeChromeOSKernel = uuid.MustParse("FE3A2A5D-4F32-41A7-B725-ACCC3285A309")
	PartitionTypeChromeOSRoot   = uuid.MustParse("3CB8E202-3B7E-47DD-8A3C-7FF2A13CFCEC")
	PartitionTypeVMFS           = uuid.MustParse("AA31E02A-400F-11DB-9590-000C2911D1B8")
)

type partitionType struct {
	guid  uuid.UUID
	alias string
	name  string
}

var partitionTypes = []partitionType{
	{PartitionTypeUnused, "unused", "Unused entry"},
	{PartitionTypeEFISystem, "esp", "EFI System partition"},
	{PartitionTypeBIOSBoot, "bios-boot", "BIOS boot partition"},
	{PartitionTypeMBRScheme, "mbr", "MBR partition scheme"},
	{PartitionTypeMSReserved, "msr", "Microsoft Reserved Partition"},
	{PartitionTypeBasicData, "basic-data", "Basic data partition"},
	{PartitionTypeWinRecovery, "win-recovery", "Windows Recovery Environment"},
	{PartitionTypeLinuxFS, "linux", "Linux filesystem data"},
	{PartitionTypeLinuxRAID, "linux-raid", "Linux RAID partition"},
	{PartitionTypeLinuxRootX64, "linux-root-x86-64", "Linux root partition (x86-64)"},
	{PartitionTypeLinuxRootA64, "linux-root-arm64", "Linux root partition (AArch64)"},
	{PartitionTypeLinuxBoot, "linux-boot", "Linux /boot partition"},
	{PartitionTypeLinuxSwap, "linux-swap", "Linux swap partition"},
	{PartitionTypeLinuxLVM, "linux-lvm", "Linux LVM partition"},
	{PartitionTypeLinuxHome, "linux-home", "Linux /home partition"},
	{PartitionTypeLinuxLUKS, "linux-luks", "LUKS partition"},
	{PartitionTypeFreeBSDBoot, "freebsd-boot", "FreeBSD boot partition"},
	{PartitionTypeFreeBSDZFS, "freebsd-zfs", "FreeBSD ZFS partition"},
	{PartitionTypeAppleHFSPlus, "hfs-plus", "Apple HFS+ partition"},
	{PartitionTypeAppleAPFS, "apfs", "Apple APFS container"},
	{PartitionTypeAppleBoot, "apple-boot", "Apple Boot partition (Recovery HD)"},
	{PartitionTypeChromeOSKernel, "chromeos-kernel", "Chrome OS kernel"},
	{PartitionTypeChromeOSRoot, "chromeos-root", "Chrome OS rootfs"},
	{PartitionTypeVMFS, "vmfs", "VMware VMFS filesystem partition"},
}

// PartitionTypeName returns the descriptive name of a partition type GUID,
// or "Unknown" when the GUID is not in the table.
func PartitionTypeName(guid uuid.UUID) string {
	for _, pt := range partitionTypes {
		if pt.guid == guid {
			return pt.name
		}
	}
	return "Unknown"
}

// ParsePartitionType resolves a short alias ("linux", "esp", ...) or a GUID string.
func ParsePartitionType(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	for _, pt := range partitionTypes {
		if strings.EqualFold(pt.alias, s) {
			return pt.guid, nil
		}
	}
	guid, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("unknown partition type %q", s)
	}
	return guid, nil
}

// PartitionTypeAliases returns the accepted short aliases in table order.
func PartitionTypeAliases() []string {
	aliases := make([]string, 0, len(partitionTypes))
	for _, pt := range partitionTypes[1:] {
		aliases = append(aliases, pt.alias)
	}
	return aliases
}

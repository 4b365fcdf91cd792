// Package bugcheck is the static knowledge base mapping Windows stop
// codes to names, descriptions, common causes, and generic remediation
// steps. The table is read-only after package init and safe to share
// across concurrent analyses.
package bugcheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Info is the knowledge-base entry for one bugcheck code.
type Info struct {
	Code         uint32   `json:"code"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CommonCauses []string `json:"common_causes,omitempty"`
	Remediation  []string `json:"remediation,omitempty"`
}

// Lookup returns the entry for code. Unknown codes yield a structured
// fallback entry, never an error, so diagnosis can proceed best-effort.
func Lookup(code uint32) Info {
	if info, ok := table[code]; ok {
		return info
	}
	return Info{
		Code:        code,
		Name:        fmt.Sprintf("UNKNOWN_0x%X", code),
		Description: "Unknown bugcheck code.",
		Remediation: []string{
			"Search the Microsoft bugcheck reference for this code",
			"Check Windows Update and vendor sites for recent driver updates",
			"Review recently installed hardware and software",
		},
	}
}

// IsCommon reports whether code belongs to the fixed set of frequently
// seen bugchecks that slightly raise diagnostic confidence.
func IsCommon(code uint32) bool {
	_, ok := commonCodes[code]
	return ok
}

/// ParseCode accepts the user-facing spellings of a bugcheck code:
// "0x3B", "3B", or decimal "59".
func ParseCode(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		n, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid bugcheck code %q", s)
		}
		return uint32(n), nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid bugcheck code %q", s)
	}
	return uint32(n), nil
}

// Codes lists every known code in ascending order, for display.
func Codes() []Info {
	infos := make([]Info, 0, len(table))
	for _, info := range table {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos
}

var commonCodes = map[uint32]struct{}{
	0x0A: {},
	0x1E: {},
	0x3B: {},
	0x50: {},
	0x7E: {},
	0xD1: {},
}

var table = map[uint32]Info{
	0x0A: {
		Code:        0x0A,
		Name:        "IRQL_NOT_LESS_OR_EQUAL",
		Description: "A kernel-mode process or driver touched pageable memory at an interrupt request level that was too high.",
		CommonCauses: []string{
			"faulty or incompatible device drivers",
			"antivirus or firewall filter drivers",
			"defective RAM",
		},
		Remediation: []string{
			"Update or roll back recently changed device drivers",
			"Run Windows Memory Diagnostic to rule out failing RAM",
			"Temporarily uninstall third-party antivirus software",
		},
	},
	0x19: {
		Code:        0x19,
		Name:        "BAD_POOL_HEADER",
		Description: "A kernel pool allocation header was corrupted, usually by a driver writing outside its allocation.",
		CommonCauses: []string{
			"driver buffer overrun",
			"antivirus filter drivers",
			"failing RAM",
		},
		Remediation: []string{
			"Update storage and antivirus filter drivers",
			"Run Windows Memory Diagnostic",
			"Enable Driver Verifier to catch the corrupting driver",
		},
	},
	0x1A: {
		Code:        0x1A,
		Name:        "MEMORY_MANAGEMENT",
		Description: "The memory manager detected a severe inconsistency in its own structures.",
		CommonCauses: []string{
			"defective RAM modules",
			"driver memory corruption",
			"disk or filesystem errors",
		},
		Remediation: []string{
			"Run Windows Memory Diagnostic or memtest86",
			"Run chkdsk on the system volume",
			"Update chipset and storage drivers",
		},
	},
	0x1E: {
		Code:        0x1E,
		Name:        "KMODE_EXCEPTION_NOT_HANDLED",
		Description: "A kernel-mode program raised an exception that no handler caught.",
		CommonCauses: []string{
			"faulty device drivers",
			"defective RAM",
			"CPU or memory overclocking",
		},
		Remediation: []string{
			"Update or remove the driver named in the crash, if any",
			"Reset CPU and memory clocks to stock settings",
			"Run Windows Memory Diagnostic",
		},
	},
	0x3B: {
		Code:        0x3B,
		Name:        "SYSTEM_SERVICE_EXCEPTION",
		Description: "An exception occurred while executing a system service routine.",
		CommonCauses: []string{
			"graphics drivers",
			"corrupted system files",
			"faulty RAM",
		},
		Remediation: []string{
			"Perform a clean reinstall of the graphics driver",
			"Run 'sfc /scannow' to repair system files",
			"Run Windows Memory Diagnostic",
		},
	},
	0x50: {
		Code:        0x50,
		Name:        "PAGE_FAULT_IN_NONPAGED_AREA",
		Description: "Invalid system memory was referenced; the address does not belong to any valid region.",
		CommonCauses: []string{
			"defective RAM",
			"buggy drivers referencing freed memory",
			"corrupted NTFS volume",
		},
		Remediation: []string{
			"Run Windows Memory Diagnostic",
			"Run chkdsk /f on the system volume",
			"Update or remove recently installed drivers",
		},
	},
	0x7A: {
		Code:        0x7A,
		Name:        "KERNEL_DATA_INPAGE_ERROR",
		Description: "A requested page of kernel data could not be read from the paging file or disk.",
		CommonCauses: []string{
			"bad disk sectors",
			"failing storage controller or cabling",
			"disk driver faults",
		},
		Remediation: []string{
			"Run chkdsk /r to locate bad sectors",
			"Check SMART health of the system disk",
			"Reseat or replace storage cables",
		},
	},
	0x7E: {
		Code:        0x7E,
		Name:        "SYSTEM_THREAD_EXCEPTION_NOT_HANDLED",
		Description: "A system thread raised an exception that no handler caught.",
		CommonCauses: []string{
			"incompatible device drivers",
			"outdated firmware or BIOS",
			"graphics drivers",
		},
		Remediation: []string{
			"Update the driver named in the crash, if any",
			"Update the system BIOS and device firmware",
			"Boot into safe mode and remove recently installed drivers",
		},
	},
	0x7F: {
		Code:        0x7F,
		Name:        "UNEXPECTED_KERNEL_MODE_TRAP",
		Description: "The CPU raised a trap the kernel cannot handle, commonly a double fault.",
		CommonCauses: []string{
			"hardware failure",
			"memory or CPU overclocking",
			"mismatched memory modules",
		},
		Remediation: []string{
			"Reset overclocked components to stock settings",
			"Run Windows Memory Diagnostic",
			"Verify memory modules are matched and seated correctly",
		},
	},
	0xC4: {
		Code:        0xC4,
		Name:        "DRIVER_VERIFIER_DETECTED_VIOLATION",
		Description: "Driver Verifier caught a driver breaking kernel contracts.",
		CommonCauses: []string{
			"driver under verification misusing memory or IRQLs",
		},
		Remediation: []string{
			"Identify the flagged driver in the crash data and update it",
			"Disable Driver Verifier once the faulty driver is fixed ('verifier /reset')",
		},
	},
	0xD1: {
		Code:        0xD1,
		Name:        "DRIVER_IRQL_NOT_LESS_OR_EQUAL",
		Description: "A kernel-mode driver touched pageable memory at DISPATCH_LEVEL or above.",
		CommonCauses: []string{
			"network drivers",
			"storage filter drivers",
			"antivirus drivers",
		},
		Remediation: []string{
			"Update network and storage drivers",
			"Temporarily uninstall third-party antivirus software",
			"Roll back drivers updated shortly before the crash",
		},
	},
	0xEF: {
		Code:        0xEF,
		Name:        "CRITICAL_PROCESS_DIED",
		Description: "A process critical to system operation terminated unexpectedly.",
		CommonCauses: []string{
			"corrupted system files",
			"failing system disk",
			"malware tampering with system processes",
		},
		Remediation: []string{
			"Run 'sfc /scannow' and 'DISM /Online /Cleanup-Image /RestoreHealth'",
			"Check disk health with chkdsk and SMART",
			"Scan for malware from a clean boot environment",
		},
	},
	0xFC: {
		Code:        0xFC,
		Name:        "ATTEMPTED_EXECUTE_OF_NOEXECUTE_MEMORY",
		Description: "Code execution was attempted from memory marked no-execute.",
		CommonCauses: []string{
			"buggy drivers corrupting control flow",
			"defective RAM",
		},
		Remediation: []string{
			"Update or remove recently installed drivers",
			"Run Windows Memory Diagnostic",
		},
	},
	0x124: {
		Code:        0x124,
		Name:        "WHEA_UNCORRECTABLE_ERROR",
		Description: "The hardware error architecture reported a fatal, uncorrectable hardware error.",
		CommonCauses: []string{
			"CPU or cache faults",
			"overheating",
			"unstable overclock or failing power supply",
		},
		Remediation: []string{
			"Check cooling and system temperatures",
			"Reset all overclocking to stock settings",
			"Test with a known-good power supply",
		},
	},
	0x133: {
		Code:        0x133,
		Name:        "DPC_WATCHDOG_VIOLATION",
		Description: "A deferred procedure call ran past its watchdog deadline.",
		CommonCauses: []string{
			"storage drivers, especially with older SSD firmware",
			"network drivers",
		},
		Remediation: []string{
			"Update SSD firmware and the storage controller driver",
			"Update network adapter drivers",
		},
	},
	0x13A: {
		Code:        0x13A,
		Name:        "KERNEL_MODE_HEAP_CORRUPTION",
		Description: "The kernel detected corruption in a kernel-mode heap.",
		CommonCauses: []string{
			"driver memory misuse",
			"defective RAM",
		},
		Remediation: []string{
			"Update drivers for recently added hardware",
			"Run Windows Memory Diagnostic",
			"Enable Driver Verifier to locate the corrupting driver",
		},
	},
}

// Package driver categorizes kernel modules and cross-references them
// against a registry of drivers with known crash issues. Both the
// classifier tables and a constructed Registry are read-only, so they
// are safe to share across concurrent analyses.
package driver

import "strings"

// Category buckets a module by the subsystem it belongs to.
type Category string

const (
	CategoryGraphics       Category = "graphics"
	CategoryNetwork        Category = "network"
	CategoryStorage        Category = "storage"
	CategoryAudio          Category = "audio"
	CategorySecurity       Category = "security"
	CategoryVirtualization Category = "virtualization"
	CategorySystem         Category = "system"
	CategoryUnknown        Category = "unknown"
)

// Windows core modules. Anything here classifies as system before the
// keyword tables run.
var systemModules = map[string]struct{}{
	"ntoskrnl.exe": {},
	"hal.dll":      {},
	"ntkrnlmp.exe": {},
	"ntkrnlpa.exe": {},
	"kernel32.dll": {},
	"ntdll.dll":    {},
	"win32k.sys":   {},
	"csrss.exe":    {},
	"lsass.exe":    {},
	"services.exe": {},
	"svchost.exe":  {},
	"explorer.exe": {},
}

// Keyword tables in match priority order. A name matching several
// categories gets the first one; "realtek" is deliberately reachable
// as network before audio.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryGraphics, []string{"nvlddmkm", "amdkmdag", "igdkmd", "nvidia", "amd", "intel", "gpu"}},
	{CategoryNetwork, []string{"net", "wifi", "wlan", "ethernet", "realtek", "broadcom"}},
	{CategoryStorage, []string{"stor", "disk", "raid", "ahci", "sata"}},
	{CategoryAudio, []string{"audio", "sound", "hdaudio", "realtek", "conexant"}},
	{CategorySecurity, []string{"antivirus", "firewall", "security", "bdss", "avg", "norton"}},
	{CategoryVirtualization, []string{"vbox", "vmware", "virtual"}},
}

// Classify buckets a module name. Dump files may record full Windows
// paths, so only the basename is considered. Unmatched names classify
// as unknown.
func Classify(name string) Category {
	base := strings.ToLower(baseName(name))
	if _, ok := systemModules[base]; ok {
		return CategorySystem
	}
	for _, t := range categoryKeywords {
		for _, kw := range t.keywords {
			if strings.Contains(base, kw) {
				return t.category
			}
		}
	}
	return CategoryUnknown
}

// IsSystem reports whether the module is part of the Windows core.
func IsSystem(name string) bool {
	_, ok := systemModules[strings.ToLower(baseName(name))]
	return ok
}

// baseName strips a Windows or POSIX path down to the filename.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		return name[i+1:]
	}
	return name
}
